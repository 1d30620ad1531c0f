package host

import (
	"testing"

	"pausesync/internal/pause"
)

var (
	_ pause.Simulation   = (*Simulation)(nil)
	_ pause.PhaseControl = (*Simulation)(nil)
)

func TestFreezeResume(t *testing.T) {
	s := New(pause.PhaseStable)
	if got := s.Snapshot(); got.Frozen || got.TimeScale != 1 || got.DispatchThreshold != -1 {
		t.Fatalf("new simulation = %+v", got)
	}

	s.Freeze()
	if got := s.Snapshot(); !got.Frozen || got.TimeScale != 0 || got.DispatchThreshold != 0 {
		t.Fatalf("frozen simulation = %+v", got)
	}

	s.Resume()
	if got := s.Snapshot(); got.Frozen || got.TimeScale != 1 || got.DispatchThreshold != -1 {
		t.Fatalf("resumed simulation = %+v", got)
	}
}

func TestForcePhase(t *testing.T) {
	s := New(pause.PhaseUnstable)
	s.ForcePhase(pause.PhaseStable)
	if got := s.CurrentPausablePhase(); got != pause.PhaseStable {
		t.Errorf("CurrentPausablePhase() = %s, want stable", got)
	}
	s.SetPhase(pause.PhaseNone)
	if got := s.Snapshot().Phase; got != pause.PhaseNone {
		t.Errorf("Snapshot().Phase = %s, want none", got)
	}
}
