package pause

import (
	"context"
	"errors"
	"testing"

	"pausesync/internal/session"
)

type fakeSim struct {
	freezes int
	resumes int
}

func (s *fakeSim) Freeze() { s.freezes++ }
func (s *fakeSim) Resume() { s.resumes++ }

type fakeClock struct {
	local   float64
	host    float64
	hasHost bool
	resets  int
}

func (c *fakeClock) LocalDifferential() float64 { return c.local }
func (c *fakeClock) SetHostDifference(v float64) {
	c.host = v
	c.hasHost = true
}
func (c *fakeClock) ResetHostDifference() {
	c.host = 0
	c.hasHost = false
	c.resets++
}

type fakePhases struct {
	phase  PausablePhase
	forced []PausablePhase
}

func (p *fakePhases) CurrentPausablePhase() PausablePhase { return p.phase }
func (p *fakePhases) ForcePhase(to PausablePhase) {
	p.phase = to
	p.forced = append(p.forced, to)
}

type sentMessage struct {
	from    session.PeerID
	targets []session.PeerID
	payload []byte
}

func (s sentMessage) decode(t *testing.T) Message {
	t.Helper()
	m, err := Decode(s.payload)
	if err != nil {
		t.Fatalf("Decode(sent payload) error = %v", err)
	}
	return m
}

// testNet is a shared view of the session: who is present and who is
// authority. Sent messages queue up until deliver is called.
type testNet struct {
	peers     map[session.PeerID]session.Peer
	authority session.PeerID
	handlers  map[session.PeerID]*Handler
	queue     []sentMessage
	sent      []sentMessage
	sendErr   error
}

func newTestNet(authority session.PeerID, ids ...session.PeerID) *testNet {
	n := &testNet{
		peers:     make(map[session.PeerID]session.Peer),
		authority: authority,
		handlers:  make(map[session.PeerID]*Handler),
	}
	for _, id := range ids {
		n.peers[id] = session.Peer{ID: id, Name: "peer" + id.String()}
	}
	return n
}

func (n *testNet) fabric(id session.PeerID) *testFabric { return &testFabric{net: n, local: id} }

// deliver drains the queue, including anything sent while delivering.
func (n *testNet) deliver(ctx context.Context) {
	for len(n.queue) > 0 {
		m := n.queue[0]
		n.queue = n.queue[1:]
		targets := m.targets
		if len(targets) == 0 {
			for id := range n.peers {
				if id != m.from {
					targets = append(targets, id)
				}
			}
		}
		for _, to := range targets {
			if h, ok := n.handlers[to]; ok {
				h.Handle(ctx, m.payload, m.from)
			}
		}
	}
}

func (n *testNet) drop() { n.queue = nil }

type testFabric struct {
	net   *testNet
	local session.PeerID
}

func (f *testFabric) LocalPeer() session.PeerID { return f.local }

func (f *testFabric) Authority() (session.Peer, bool) {
	p, ok := f.net.peers[f.net.authority]
	return p, ok
}

func (f *testFabric) IsLocalAuthority() bool { return f.net.authority == f.local }

func (f *testFabric) Send(targets []session.PeerID, payload []byte) error {
	if f.net.sendErr != nil {
		return f.net.sendErr
	}
	m := sentMessage{from: f.local, targets: append([]session.PeerID(nil), targets...), payload: payload}
	f.net.queue = append(f.net.queue, m)
	f.net.sent = append(f.net.sent, m)
	return nil
}

func (f *testFabric) ResolvePeer(id session.PeerID) (session.Peer, bool) {
	p, ok := f.net.peers[id]
	return p, ok
}

type testPeer struct {
	id          session.PeerID
	sim         *fakeSim
	clock       *fakeClock
	phases      *fakePhases
	store       *Store
	handler     *Handler
	canPause    bool
	transitions []Transition
}

func (n *testNet) addPeer(id session.PeerID, phase PausablePhase) *testPeer {
	p := &testPeer{
		id:     id,
		sim:    &fakeSim{},
		clock:  &fakeClock{},
		phases: &fakePhases{phase: phase},
	}
	p.store = NewStore(p.sim, p.clock)
	p.handler = NewHandler(Config{
		Store:        p.store,
		Fabric:       n.fabric(id),
		Phases:       p.phases,
		Permission:   PermissionFunc(func() bool { return p.canPause }),
		OnTransition: func(t Transition) { p.transitions = append(p.transitions, t) },
	})
	n.handlers[id] = p.handler
	return p
}

var errSendClosed = errors.New("fabric closed")
