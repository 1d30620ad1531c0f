package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
name: alice
ordinal: 1
listen: 127.0.0.1:7701
authority: 2
players_can_pause: true
resync_interval: 10s
log: {level: debug, format: pretty}
ntp: {pool: time.example.org, disabled: true}
journal: /tmp/pause.db
peers:
  - {ordinal: 2, name: bob, addr: 127.0.0.1:7702}
  - {ordinal: 3, addr: 127.0.0.1:7703}
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Name != "alice" || cfg.Ordinal != 1 || cfg.Listen != "127.0.0.1:7701" {
		t.Errorf("identity = %q/%d/%q", cfg.Name, cfg.Ordinal, cfg.Listen)
	}
	if cfg.Authority == nil || *cfg.Authority != 2 {
		t.Errorf("Authority = %v, want 2", cfg.Authority)
	}
	if !cfg.PlayersCanPause || cfg.ResyncInterval != 10*time.Second {
		t.Errorf("PlayersCanPause=%v ResyncInterval=%s", cfg.PlayersCanPause, cfg.ResyncInterval)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %s, want default", cfg.RequestTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "pretty" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.NTP.Pool != "time.example.org" || !cfg.NTP.Disabled || cfg.NTP.Interval != DefaultNTPInterval {
		t.Errorf("NTP = %+v", cfg.NTP)
	}
	if len(cfg.Peers) != 2 || cfg.Peers[0].Name != "bob" || cfg.Peers[1].Addr != "127.0.0.1:7703" {
		t.Errorf("Peers = %+v", cfg.Peers)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := Normalize(Config{Ordinal: 1, Listen: " 127.0.0.1:1 "})
	if cfg.Listen != "127.0.0.1:1" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.NTP.Pool != DefaultNTPPool {
		t.Errorf("NTP.Pool = %q", cfg.NTP.Pool)
	}
	if cfg.ResyncInterval != 0 {
		t.Errorf("ResyncInterval = %s, want disabled", cfg.ResyncInterval)
	}
}

func TestValidate(t *testing.T) {
	pin := func(n int) *int { return &n }
	valid := func() Config {
		return Normalize(Config{
			Ordinal: 1,
			Listen:  "127.0.0.1:7701",
			Peers:   []Peer{{Ordinal: 2, Addr: "127.0.0.1:7702"}},
		})
	}
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "pin self", mutate: func(c *Config) { c.Authority = pin(1) }},
		{name: "zero ordinal", mutate: func(c *Config) { c.Ordinal = 0 }, wantField: "ordinal"},
		{name: "bad listen", mutate: func(c *Config) { c.Listen = "nowhere" }, wantField: "listen"},
		{name: "negative resync", mutate: func(c *Config) { c.ResyncInterval = -time.Second }, wantField: "resync_interval"},
		{name: "unknown format", mutate: func(c *Config) { c.Log.Format = "json" }, wantField: "log.format"},
		{name: "unknown level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantField: "log.level"},
		{name: "duplicate ordinal", mutate: func(c *Config) { c.Peers[0].Ordinal = 1 }, wantField: "peers[0].ordinal"},
		{name: "peer without addr", mutate: func(c *Config) { c.Peers[0].Addr = "" }, wantField: "peers[0].addr"},
		{name: "pin unknown", mutate: func(c *Config) { c.Authority = pin(9) }, wantField: "authority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ordinal != 1 {
		t.Errorf("Ordinal = %d", cfg.Ordinal)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := Parse([]byte("ordinal: [")); err == nil {
		t.Error("Parse() accepted malformed yaml")
	}
}
