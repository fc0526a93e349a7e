// Package config
// Author: momentics <momentics@gmail.com>
//
// Layered configuration for arithd: defaults, TOML file, ARITHD_* environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/momentics/hioload-arith/internal/logging"
	"github.com/momentics/hioload-arith/reactor"
	"github.com/momentics/hioload-arith/server"
)

// Config holds the effective arithd configuration.
type Config struct {
	ListenAddr     string
	Backlog        int
	BufferSize     int
	MaxConnections int
	Backend        string
	PollTimeout    time.Duration
	MaxEvents      int

	ControlAddr string // empty disables the control HTTP server

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":3890",
		Backlog:        128,
		BufferSize:     1000,
		MaxConnections: 1024,
		Backend:        reactor.BackendAuto,
		MaxEvents:      reactor.DefaultMaxEvents,
		LogLevel:       "info",
		LogFormat:      logging.FormatConsole,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return c.ServerConfig().Validate()
}

// ServerConfig derives the event-loop configuration.
func (c *Config) ServerConfig() *server.Config {
	return &server.Config{
		ListenAddr:     c.ListenAddr,
		Backlog:        c.Backlog,
		BufferSize:     c.BufferSize,
		MaxConnections: c.MaxConnections,
		Backend:        c.Backend,
		PollTimeout:    c.PollTimeout,
		MaxEvents:      c.MaxEvents,
	}
}

// Snapshot flattens the configuration for control.ConfigStore, keyed like
// the TOML file.
func (c *Config) Snapshot() map[string]any {
	return map[string]any{
		"listen_addr":     c.ListenAddr,
		"backlog":         c.Backlog,
		"buffer_size":     c.BufferSize,
		"max_connections": c.MaxConnections,
		"backend":         c.Backend,
		"poll_timeout":    c.PollTimeout.String(),
		"max_events":      c.MaxEvents,
		"control_addr":    c.ControlAddr,
		"log_level":       c.LogLevel,
		"log_format":      c.LogFormat,
	}
}

// configSetter applies values while respecting flag precedence: a value is
// only applied when the corresponding flag was not set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int that may legitimately be zero.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntFromString parses an environment value. Zero is accepted.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("parse %s: negative value %d", flag, i)
	}
	*dst = i
	return nil
}
