// Package memory is an in-process message fabric for tests and simulations.
// Messages queue until Flush, which makes delivery order and loss explicit.
package memory

import (
	"fmt"
	"sync"

	"pausesync/internal/session"
	"pausesync/internal/transport"
)

type pending struct {
	from    session.PeerID
	to      session.PeerID
	channel string
	payload []byte
}

// Hub connects endpoints. All endpoints share one set of configured peers.
type Hub struct {
	mu        sync.Mutex
	peers     []session.Peer
	endpoints map[session.PeerID]*Endpoint
	queue     []pending
	dropNext  int
	dropAll   bool
}

func NewHub(peers ...session.Peer) *Hub {
	return &Hub{
		peers:     append([]session.Peer(nil), peers...),
		endpoints: make(map[session.PeerID]*Endpoint),
	}
}

// Endpoint is one peer attached to the hub.
type Endpoint struct {
	hub     *Hub
	roster  *session.Roster
	inbound chan session.Envelope
}

// Connect attaches the peer with the given ordinal. It joins every endpoint
// already connected and they join it.
func (h *Hub) Connect(id session.PeerID, inboundBuffer int) (*Endpoint, error) {
	h.mu.Lock()
	var local session.Peer
	found := false
	for _, p := range h.peers {
		if p.ID == id {
			local, found = p, true
		}
	}
	if !found {
		h.mu.Unlock()
		return nil, fmt.Errorf("connect peer %d: not configured", id)
	}
	if _, ok := h.endpoints[id]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("connect peer %d: already connected", id)
	}
	e := &Endpoint{
		hub:     h,
		roster:  session.NewRoster(local, h.peers...),
		inbound: make(chan session.Envelope, inboundBuffer),
	}
	others := make([]*Endpoint, 0, len(h.endpoints))
	for _, o := range h.endpoints {
		others = append(others, o)
	}
	h.endpoints[id] = e
	h.mu.Unlock()

	for _, o := range others {
		o.roster.Join(local)
		e.roster.Join(o.roster.Local())
	}
	return e, nil
}

// Disconnect detaches a peer; the others see it leave.
func (h *Hub) Disconnect(id session.PeerID) {
	h.mu.Lock()
	if _, ok := h.endpoints[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.endpoints, id)
	others := make([]*Endpoint, 0, len(h.endpoints))
	for _, o := range h.endpoints {
		others = append(others, o)
	}
	h.mu.Unlock()

	for _, o := range others {
		o.roster.Leave(id)
	}
}

// DropNext discards the next n queued messages on Flush.
func (h *Hub) DropNext(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropNext += n
}

// Partition drops every message while on is true.
func (h *Hub) Partition(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropAll = on
}

// Pending is the number of queued messages.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Flush hands every queued message to its recipient's inbound stream and
// reports how many were delivered. Messages to a full or missing endpoint are
// lost.
func (h *Hub) Flush() int {
	h.mu.Lock()
	queue := h.queue
	h.queue = nil
	delivered := 0
	for _, m := range queue {
		if h.dropAll {
			continue
		}
		if h.dropNext > 0 {
			h.dropNext--
			continue
		}
		e, ok := h.endpoints[m.to]
		if !ok {
			continue
		}
		select {
		case e.inbound <- session.Envelope{Sender: m.from, Channel: m.channel, Payload: m.payload}:
			delivered++
		default:
		}
	}
	h.mu.Unlock()
	return delivered
}

func (e *Endpoint) Roster() *session.Roster { return e.roster }

func (e *Endpoint) Inbound() <-chan session.Envelope { return e.inbound }

func (e *Endpoint) Channel(name string) *transport.Channel {
	return transport.NewChannel(name, e.roster, e)
}

// Deliver queues payload for to.
func (e *Endpoint) Deliver(channel string, to session.Peer, payload []byte) error {
	h := e.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.endpoints[e.roster.Local().ID]; !ok {
		return transport.ErrClosed
	}
	h.queue = append(h.queue, pending{
		from:    e.roster.Local().ID,
		to:      to.ID,
		channel: channel,
		payload: append([]byte(nil), payload...),
	})
	return nil
}
