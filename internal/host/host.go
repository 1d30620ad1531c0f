// Package host is a reference simulation that the pause protocol drives. It
// keeps the time scale and dispatch threshold a game loop would read, and the
// current phase of play.
package host

import (
	"log/slog"
	"sync"

	"pausesync/internal/pause"
)

const (
	RunningTimeScale = 1.0
	FrozenTimeScale  = 0.0

	// NormalDispatch lets every queued message through.
	NormalDispatch = -1
	// FrozenDispatch holds queued messages until resume.
	FrozenDispatch = 0
)

type Snapshot struct {
	TimeScale         float64
	DispatchThreshold int
	Phase             pause.PausablePhase
	Frozen            bool
}

// Simulation is safe for concurrent use.
type Simulation struct {
	mu                sync.Mutex
	timeScale         float64
	dispatchThreshold int
	phase             pause.PausablePhase
}

func New(phase pause.PausablePhase) *Simulation {
	return &Simulation{
		timeScale:         RunningTimeScale,
		dispatchThreshold: NormalDispatch,
		phase:             phase,
	}
}

func (s *Simulation) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeScale = FrozenTimeScale
	s.dispatchThreshold = FrozenDispatch
	slog.Debug("simulation frozen")
}

func (s *Simulation) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeScale = RunningTimeScale
	s.dispatchThreshold = NormalDispatch
	slog.Debug("simulation resumed")
}

func (s *Simulation) CurrentPausablePhase() pause.PausablePhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// ForcePhase is called by the pause protocol to switch sub-modes.
func (s *Simulation) ForcePhase(to pause.PausablePhase) {
	s.SetPhase(to)
}

// SetPhase moves play into a different phase.
func (s *Simulation) SetPhase(to pause.PausablePhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != to {
		slog.Debug("phase changed", "from", s.phase, "to", to)
	}
	s.phase = to
}

func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		TimeScale:         s.timeScale,
		DispatchThreshold: s.dispatchThreshold,
		Phase:             s.phase,
		Frozen:            s.timeScale == FrozenTimeScale,
	}
}
