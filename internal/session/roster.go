// Package session tracks who is in a pause session and which peer currently
// acts as the authority.
//
// Peers are addressed by a stable numeric ordinal. The authority is the pinned
// ordinal when that peer is present, otherwise the lowest present ordinal. The
// roster only records facts; it never decides anything about pause state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"pausesync/internal/check"
)

const subscriberBufferCap = 64

// PeerID is the stable ordinal of a peer within a session.
type PeerID int

func (id PeerID) String() string { return strconv.Itoa(int(id)) }

// Peer describes a session member.
type Peer struct {
	ID   PeerID
	Name string
	Addr string
}

func (p Peer) String() string {
	if p.Name == "" {
		return "peer#" + p.ID.String()
	}
	return fmt.Sprintf("%s#%d", p.Name, p.ID)
}

// Envelope is one inbound message as delivered by the messaging fabric.
type Envelope struct {
	Sender  PeerID
	Channel string
	Payload []byte
}

type ChangeKind uint8

const (
	ChangeJoined ChangeKind = iota + 1
	ChangeLeft
	ChangeAuthority
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeJoined:
		return "joined"
	case ChangeLeft:
		return "left"
	case ChangeAuthority:
		return "authority"
	default:
		return "unknown"
	}
}

// Change is published to subscribers whenever presence or authority moves.
// For ChangeAuthority, Peer is the new authority and HasPeer is false when the
// session is left without one.
type Change struct {
	Kind    ChangeKind
	Peer    Peer
	HasPeer bool
}

type Roster struct {
	mu        sync.Mutex
	local     PeerID
	known     map[PeerID]Peer
	present   map[PeerID]bool
	pinned    *PeerID
	authority *PeerID
	subs      map[uint64]chan Change
	nextSub   uint64
}

// NewRoster creates a roster in which only the local peer is present.
func NewRoster(local Peer, known ...Peer) *Roster {
	r := &Roster{
		local:   local.ID,
		known:   make(map[PeerID]Peer, len(known)+1),
		present: map[PeerID]bool{local.ID: true},
		subs:    make(map[uint64]chan Change),
	}
	r.known[local.ID] = local
	for _, p := range known {
		check.Assertf(p.ID != local.ID || p == local, "session.NewRoster: conflicting entry for local ordinal %d", p.ID)
		if p.ID == local.ID {
			continue
		}
		r.known[p.ID] = p
	}
	r.authority = r.electLocked()
	return r
}

// Pin makes id the preferred authority whenever it is present.
func (r *Roster) Pin(id PeerID) {
	r.mu.Lock()
	r.pinned = &id
	changes := r.reelectLocked()
	r.mu.Unlock()
	r.publish(changes...)
}

// Local returns the local peer.
func (r *Roster) Local() Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known[r.local]
}

// Known returns every configured peer except the local one, ordered by ordinal.
func (r *Roster) Known() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.known))
	for id, p := range r.known {
		if id != r.local {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Peer) int { return int(a.ID) - int(b.ID) })
	return out
}

// Present returns the present peers other than the local one, ordered by ordinal.
func (r *Roster) Present() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.present))
	for id := range r.present {
		if id != r.local {
			out = append(out, r.known[id])
		}
	}
	slices.SortFunc(out, func(a, b Peer) int { return int(a.ID) - int(b.ID) })
	return out
}

// Lookup resolves an ordinal to a present peer. Peers that have left resolve
// to false.
func (r *Roster) Lookup(id PeerID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.present[id] {
		return Peer{}, false
	}
	return r.known[id], true
}

// Member resolves an ordinal to a configured or previously joined peer,
// present or not.
func (r *Roster) Member(id PeerID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.known[id]
	return p, ok
}

// Join marks a peer present. Unknown peers are added with the given details.
func (r *Roster) Join(p Peer) {
	r.mu.Lock()
	if r.present[p.ID] {
		r.mu.Unlock()
		return
	}
	if existing, ok := r.known[p.ID]; ok {
		if p.Name == "" {
			p.Name = existing.Name
		}
		if p.Addr == "" {
			p.Addr = existing.Addr
		}
	}
	r.known[p.ID] = p
	r.present[p.ID] = true
	changes := append([]Change{{Kind: ChangeJoined, Peer: p, HasPeer: true}}, r.reelectLocked()...)
	r.mu.Unlock()

	slog.Debug("peer joined", "peer", p.String())
	r.publish(changes...)
}

// Leave marks a peer absent. The local peer never leaves its own roster.
func (r *Roster) Leave(id PeerID) {
	r.mu.Lock()
	if id == r.local || !r.present[id] {
		r.mu.Unlock()
		return
	}
	delete(r.present, id)
	p := r.known[id]
	changes := append([]Change{{Kind: ChangeLeft, Peer: p, HasPeer: true}}, r.reelectLocked()...)
	r.mu.Unlock()

	slog.Debug("peer left", "peer", p.String())
	r.publish(changes...)
}

// Authority returns the current authority.
func (r *Roster) Authority() (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.authority == nil {
		return Peer{}, false
	}
	return r.known[*r.authority], true
}

// IsAuthority reports whether id is the current authority.
func (r *Roster) IsAuthority(id PeerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authority != nil && *r.authority == id
}

// Subscribe streams roster changes until ctx is done. Slow subscribers miss
// changes rather than block the roster.
func (r *Roster) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, subscriberBufferCap)
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, id)
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}

func (r *Roster) electLocked() *PeerID {
	if r.pinned != nil && r.present[*r.pinned] {
		id := *r.pinned
		return &id
	}
	var best *PeerID
	for id := range r.present {
		if best == nil || id < *best {
			id := id
			best = &id
		}
	}
	return best
}

func (r *Roster) reelectLocked() []Change {
	next := r.electLocked()
	prev := r.authority
	r.authority = next
	switch {
	case prev == nil && next == nil:
		return nil
	case prev != nil && next != nil && *prev == *next:
		return nil
	case next == nil:
		return []Change{{Kind: ChangeAuthority}}
	default:
		return []Change{{Kind: ChangeAuthority, Peer: r.known[*next], HasPeer: true}}
	}
}

func (r *Roster) publish(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range changes {
		for _, sub := range r.subs {
			select {
			case sub <- c:
			default:
			}
		}
	}
}
