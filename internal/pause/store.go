package pause

import (
	"pausesync/internal/check"
	"pausesync/internal/session"
)

// Store holds the session's pause state. Create one per session and Reset it
// when the session ends or the authority changes.
type Store struct {
	sim   Simulation
	clock ClockSync

	state       State
	canPause    bool
	pausingPeer *session.Peer
	clockOffset float64

	// resumeUnstable is set when a pause was entered from the unstable
	// variant of the pausable phase and is consumed by the next unpause.
	resumeUnstable bool
}

func NewStore(sim Simulation, clock ClockSync) *Store {
	check.Assert(sim != nil, "pause.NewStore: simulation must not be nil")
	check.Assert(clock != nil, "pause.NewStore: clock sync must not be nil")
	return &Store{
		sim:   sim,
		clock: clock,
		state: StateUnpaused,
	}
}

func (s *Store) State() State { return s.state }

func (s *Store) Paused() bool { return s.state == StatePaused }

func (s *Store) CanPause() bool { return s.canPause }

// PausingPeer is the peer whose request produced the current pause. It is
// absent while unpaused, and may be absent while paused when that peer has
// already left the session.
func (s *Store) PausingPeer() (session.Peer, bool) {
	if s.pausingPeer == nil {
		return session.Peer{}, false
	}
	return *s.pausingPeer, true
}

// ClockOffset is the authority's differential recorded with the last pause command.
func (s *Store) ClockOffset() float64 { return s.clockOffset }

// ClockDifferential is the local differential to put into outbound commands.
func (s *Store) ClockDifferential() float64 { return s.clock.LocalDifferential() }

// SetPaused reports whether the value changed. Only a change reaches the
// simulation, so repeated identical calls freeze or resume at most once.
func (s *Store) SetPaused(paused bool) bool {
	if paused == s.Paused() {
		return false
	}
	if paused {
		s.state = s.state.Transition(StatePaused)
		s.sim.Freeze()
		return true
	}
	s.state = s.state.Transition(StateUnpaused)
	s.pausingPeer = nil
	s.sim.Resume()
	return true
}

func (s *Store) SetCanPause(allowed bool) { s.canPause = allowed }

// Reset returns to an unpaused state with no recorded clock offset.
func (s *Store) Reset() {
	s.SetPaused(false)
	s.pausingPeer = nil
	s.clockOffset = 0
	s.resumeUnstable = false
	s.clock.ResetHostDifference()
}

func (s *Store) setPausingPeer(p *session.Peer) {
	check.Assert(p == nil || s.Paused(), "pause.Store: pausing peer recorded while unpaused")
	if !s.Paused() {
		return
	}
	s.pausingPeer = p
}

func (s *Store) recordClockOffset(seconds float64, fromAuthority bool) {
	s.clockOffset = seconds
	if fromAuthority {
		s.clock.SetHostDifference(seconds)
	}
}

func (s *Store) rememberUnstable() { s.resumeUnstable = true }

// takeUnstable consumes the remembered sub-mode.
func (s *Store) takeUnstable() bool {
	v := s.resumeUnstable
	s.resumeUnstable = false
	return v
}
