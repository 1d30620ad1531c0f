package pause

import "pausesync/internal/check"

// State is the pause state machine's current state.
type State uint8

const (
	StateUnpaused State = iota + 1
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateUnpaused:
		return "unpaused"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s State) Transition(to State) State {
	ok := false
	switch s {
	case StateUnpaused:
		ok = to == StatePaused
	case StatePaused:
		ok = to == StateUnpaused
	}
	check.Assertf(ok, "pause transition: %s -> %s", s, to)
	if !ok {
		return s
	}
	return to
}

// PausablePhase is the host simulation's answer to "may we pause right now".
type PausablePhase uint8

const (
	PhaseNone PausablePhase = iota
	PhaseStable
	PhaseUnstable
)

func (p PausablePhase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseStable:
		return "stable"
	case PhaseUnstable:
		return "unstable"
	default:
		return "unknown"
	}
}

// ParsePausablePhase parses the String form of a phase.
func ParsePausablePhase(s string) (PausablePhase, bool) {
	switch s {
	case "none":
		return PhaseNone, true
	case "stable":
		return PhaseStable, true
	case "unstable":
		return PhaseUnstable, true
	default:
		return PhaseNone, false
	}
}
