// Package config loads a peer's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"pausesync/internal/logging"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRequestTimeout = 2 * time.Second
	DefaultNTPPool        = "pool.ntp.org"
	DefaultNTPInterval    = 60 * time.Second
)

// ValidationError indicates an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type NTP struct {
	Pool     string        `yaml:"pool,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// Peer is another member of the session.
type Peer struct {
	Ordinal int    `yaml:"ordinal"`
	Name    string `yaml:"name,omitempty"`
	Addr    string `yaml:"addr"`
}

type Config struct {
	Name    string `yaml:"name,omitempty"`
	Ordinal int    `yaml:"ordinal"`
	Listen  string `yaml:"listen"`
	// Authority pins the preferred authority ordinal. Unset means the lowest
	// present ordinal leads.
	Authority       *int          `yaml:"authority,omitempty"`
	PlayersCanPause bool          `yaml:"players_can_pause"`
	ResyncInterval  time.Duration `yaml:"resync_interval,omitempty"`
	RequestTimeout  time.Duration `yaml:"request_timeout,omitempty"`
	Log             Log           `yaml:"log,omitempty"`
	NTP             NTP           `yaml:"ntp,omitempty"`
	Journal         string        `yaml:"journal,omitempty"`
	Peers           []Peer        `yaml:"peers"`
}

// Load reads, normalizes and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config %s does not exist", path)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = Normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize fills defaults.
func Normalize(cfg Config) Config {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Listen = strings.TrimSpace(cfg.Listen)
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = logging.LevelInfo
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = logging.FormatText
	}
	if cfg.NTP.Pool == "" {
		cfg.NTP.Pool = DefaultNTPPool
	}
	if cfg.NTP.Interval == 0 {
		cfg.NTP.Interval = DefaultNTPInterval
	}
	for i := range cfg.Peers {
		cfg.Peers[i].Name = strings.TrimSpace(cfg.Peers[i].Name)
		cfg.Peers[i].Addr = strings.TrimSpace(cfg.Peers[i].Addr)
	}
	return cfg
}

func (c Config) Validate() error {
	if c.Ordinal <= 0 {
		return &ValidationError{Field: "ordinal", Message: "must be positive"}
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return &ValidationError{Field: "listen", Message: err.Error()}
	}
	if c.ResyncInterval < 0 {
		return &ValidationError{Field: "resync_interval", Message: "must not be negative"}
	}
	if c.RequestTimeout < 0 {
		return &ValidationError{Field: "request_timeout", Message: "must not be negative"}
	}
	if c.NTP.Interval < 0 {
		return &ValidationError{Field: "ntp.interval", Message: "must not be negative"}
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatPretty:
	default:
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	switch c.Log.Level {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}

	seen := map[int]bool{c.Ordinal: true}
	for i, p := range c.Peers {
		field := fmt.Sprintf("peers[%d]", i)
		if p.Ordinal <= 0 {
			return &ValidationError{Field: field + ".ordinal", Message: "must be positive"}
		}
		if seen[p.Ordinal] {
			return &ValidationError{Field: field + ".ordinal", Message: fmt.Sprintf("duplicate ordinal %d", p.Ordinal)}
		}
		seen[p.Ordinal] = true
		if _, _, err := net.SplitHostPort(p.Addr); err != nil {
			return &ValidationError{Field: field + ".addr", Message: err.Error()}
		}
	}
	if c.Authority != nil && !seen[*c.Authority] {
		return &ValidationError{Field: "authority", Message: fmt.Sprintf("ordinal %d is not a configured peer", *c.Authority)}
	}
	return nil
}
