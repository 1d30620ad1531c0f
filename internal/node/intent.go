package node

import (
	"time"

	"pausesync/internal/pause"
	"pausesync/internal/session"
)

// IntentType enumerates the local actions a node accepts.
type IntentType uint8

const (
	IntentToggle IntentType = iota + 1
	IntentSetPermission
	IntentSetPhase
	IntentStatus
	IntentResync
)

func (t IntentType) String() string {
	switch t {
	case IntentToggle:
		return "toggle"
	case IntentSetPermission:
		return "set_permission"
	case IntentSetPhase:
		return "set_phase"
	case IntentStatus:
		return "status"
	case IntentResync:
		return "resync"
	default:
		return "unknown"
	}
}

// Intent is posted to the node's loop. The loop answers on Reply with the
// status after the intent was applied.
type Intent struct {
	Type    IntentType
	Allowed bool
	Phase   pause.PausablePhase
	Reply   chan Status
}

// Status is a point-in-time view of a node.
type Status struct {
	Local           session.Peer
	Authority       session.Peer
	HasAuthority    bool
	IsAuthority     bool
	Present         []session.Peer
	Paused          bool
	CanPause        bool
	PausingPeer     *session.Peer
	ClockOffset     float64
	PlayersCanPause bool
	Phase           pause.PausablePhase

	// Set only when the clock implements AuthorityClock.
	HostDifference    float64
	HasHostDifference bool
	AuthorityTime     time.Time
}
