package main

import (
	"errors"
	"testing"

	"pausesync/internal/node"
	"pausesync/internal/pause"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		line    string
		want    node.Intent
		wantErr bool
	}{
		{line: "", want: node.Intent{Type: node.IntentStatus}},
		{line: "toggle", want: node.Intent{Type: node.IntentToggle}},
		{line: " P ", want: node.Intent{Type: node.IntentToggle}},
		{line: "allow", want: node.Intent{Type: node.IntentSetPermission, Allowed: true}},
		{line: "deny", want: node.Intent{Type: node.IntentSetPermission}},
		{line: "phase unstable", want: node.Intent{Type: node.IntentSetPhase, Phase: pause.PhaseUnstable}},
		{line: "phase none", want: node.Intent{Type: node.IntentSetPhase, Phase: pause.PhaseNone}},
		{line: "resync", want: node.Intent{Type: node.IntentResync}},
		{line: "phase", wantErr: true},
		{line: "phase warp", wantErr: true},
		{line: "jump", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseIntent(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIntent(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !tt.wantErr && (got.Type != tt.want.Type || got.Allowed != tt.want.Allowed || got.Phase != tt.want.Phase) {
				t.Errorf("parseIntent(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}

	if _, err := parseIntent("quit"); !errors.Is(err, errQuit) {
		t.Errorf("parseIntent(quit) error = %v, want errQuit", err)
	}
}
