package pause

import "pausesync/internal/session"

// Fabric is the session messaging layer as seen from the pause channel.
// Production: transport.Channel
// Testing: transport/memory channels or a recording fake
type Fabric interface {
	LocalPeer() session.PeerID
	// Authority returns the current authority, re-read on every call.
	Authority() (session.Peer, bool)
	IsLocalAuthority() bool
	// Send delivers payload to targets, or to every other peer when targets
	// is empty. Delivery is fire-and-forget.
	Send(targets []session.PeerID, payload []byte) error
	// ResolvePeer maps an ordinal to a present peer. Departed peers resolve
	// to false.
	ResolvePeer(id session.PeerID) (session.Peer, bool)
}

// Simulation applies the effect of pausing to the host.
type Simulation interface {
	// Freeze stops simulation time and disables time-scaled dispatch throttling.
	Freeze()
	// Resume restores normal time and dispatch.
	Resume()
}

// PhaseControl exposes the host's pausable-phase predicate.
type PhaseControl interface {
	CurrentPausablePhase() PausablePhase
	ForcePhase(PausablePhase)
}

// Permission supplies the authority's configured "players can pause" value.
type Permission interface {
	PlayersCanPause() bool
}

// ClockSync owns the wall-clock differential carried in pause commands.
type ClockSync interface {
	// LocalDifferential is the local clock's offset, in seconds.
	LocalDifferential() float64
	SetHostDifference(seconds float64)
	ResetHostDifference()
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func() bool

func (f PermissionFunc) PlayersCanPause() bool { return f() }
