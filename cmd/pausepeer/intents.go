package main

import (
	"errors"
	"fmt"
	"strings"

	"pausesync/internal/node"
	"pausesync/internal/pause"
)

const intentHelp = "toggle | allow | deny | phase none|stable|unstable | resync | status | quit"

var errQuit = errors.New("quit")

// parseIntent turns one line of operator input into a node intent.
func parseIntent(line string) (node.Intent, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return node.Intent{Type: node.IntentStatus}, nil
	}
	switch fields[0] {
	case "toggle", "t", "pause", "p":
		return node.Intent{Type: node.IntentToggle}, nil
	case "allow":
		return node.Intent{Type: node.IntentSetPermission, Allowed: true}, nil
	case "deny":
		return node.Intent{Type: node.IntentSetPermission, Allowed: false}, nil
	case "phase":
		if len(fields) != 2 {
			return node.Intent{}, fmt.Errorf("usage: phase none|stable|unstable")
		}
		phase, ok := pause.ParsePausablePhase(fields[1])
		if !ok {
			return node.Intent{}, fmt.Errorf("unknown phase %q", fields[1])
		}
		return node.Intent{Type: node.IntentSetPhase, Phase: phase}, nil
	case "resync":
		return node.Intent{Type: node.IntentResync}, nil
	case "status", "s":
		return node.Intent{Type: node.IntentStatus}, nil
	case "quit", "exit", "q":
		return node.Intent{}, errQuit
	default:
		return node.Intent{}, fmt.Errorf("unknown command %q (%s)", fields[0], intentHelp)
	}
}
