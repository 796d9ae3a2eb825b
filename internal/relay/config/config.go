// Package config handles the relay daemon configuration.
package config

import (
	"fmt"
	"net"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	defaultAddress    = ":6666"
	defaultLogLevel   = "info"
	defaultMaxFrame   = 1 << 20
	defaultMaxGroup   = 8
	defaultQueueDepth = 100
)

// Server holds the listener parameters.
type Server struct {
	// Address is the TCP listen address.
	Address string

	// CertFile and KeyFile are the PEM-encoded TLS certificate and
	// private key. Self-signed certificates are fine for test
	// deployments; clients opt into skipping verification.
	CertFile string
	KeyFile  string
}

func (s *Server) validate() error {
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if _, _, err := net.SplitHostPort(s.Address); err != nil {
		return fmt.Errorf("config: invalid Address %q: %w", s.Address, err)
	}
	if s.CertFile == "" || s.KeyFile == "" {
		return fmt.Errorf("config: CertFile and KeyFile are required")
	}
	return nil
}

// Limits bounds per-connection and per-room resources.
type Limits struct {
	// MaxFrameBytes rejects frames whose declared length exceeds it.
	MaxFrameBytes uint32

	// MaxGroupParticipants caps group rooms; requested caps above it
	// are clamped.
	MaxGroupParticipants uint64

	// OutboundQueueDepth is the per-connection fan-out buffer. A
	// participant whose queue is full is dropped from its room.
	OutboundQueueDepth int
}

func (l *Limits) applyDefaults() {
	if l.MaxFrameBytes == 0 {
		l.MaxFrameBytes = defaultMaxFrame
	}
	if l.MaxGroupParticipants == 0 {
		l.MaxGroupParticipants = defaultMaxGroup
	}
	if l.OutboundQueueDepth == 0 {
		l.OutboundQueueDepth = defaultQueueDepth
	}
}

// Logging holds the zap level for the daemon.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string
}

func (l *Logging) validate() error {
	switch l.Level {
	case "":
		l.Level = defaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid Logging.Level %q", l.Level)
	}
	return nil
}

// Config is the top-level relay daemon configuration.
type Config struct {
	Server  Server
	Limits  Limits
	Logging Logging
}

// FixupAndValidate applies defaults and sanity-checks the configuration.
func (c *Config) FixupAndValidate() error {
	c.Limits.applyDefaults()
	if err := c.Logging.validate(); err != nil {
		return err
	}
	return c.Server.validate()
}

// Load parses and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
