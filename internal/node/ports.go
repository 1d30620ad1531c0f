package node

import (
	"time"

	"pausesync/internal/pause"
	"pausesync/internal/session"
	"pausesync/internal/transport"
)

// Transport is the session fabric a node runs on.
// Production: transport.Peer
// Testing: memory.Endpoint
type Transport interface {
	Roster() *session.Roster
	Inbound() <-chan session.Envelope
	Channel(name string) *transport.Channel
}

// Host is the simulation the node pauses.
type Host interface {
	pause.Simulation
	pause.PhaseControl
	SetPhase(pause.PausablePhase)
}

// AuthorityClock translates local time into the authority's time using the
// host difference last received from the authority.
// Production: clocksync.Tracker
type AuthorityClock interface {
	HostDifference() (float64, bool)
	AuthorityTime(local time.Time) time.Time
}

// Journal records transitions for later inspection.
type Journal interface {
	Record(local session.PeerID, t pause.Transition) error
}
