// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/reactor"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr     string        // TCP bind address; empty host binds dual-stack
	Backlog        int           // listen(2) backlog
	BufferSize     int           // maximum request size in bytes
	MaxConnections int           // peer limit, 0 = unlimited
	Backend        string        // reactor backend: auto, epoll, poll
	PollTimeout    time.Duration // readiness wait timeout, <= 0 blocks
	MaxEvents      int           // ready events handled per wait
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":3890",
		Backlog:        128,
		BufferSize:     1000,
		MaxConnections: 1024,
		Backend:        reactor.BackendAuto,
		PollTimeout:    0,
		MaxEvents:      reactor.DefaultMaxEvents,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("listen address is empty: %w", api.ErrInvalidArgument)
	case c.BufferSize <= 0:
		return fmt.Errorf("buffer size %d must be positive: %w", c.BufferSize, api.ErrInvalidArgument)
	case c.MaxConnections < 0:
		return fmt.Errorf("max connections %d must not be negative: %w", c.MaxConnections, api.ErrInvalidArgument)
	case c.Backlog < 0:
		return fmt.Errorf("backlog %d must not be negative: %w", c.Backlog, api.ErrInvalidArgument)
	case c.MaxEvents <= 0:
		return fmt.Errorf("max events %d must be positive: %w", c.MaxEvents, api.ErrInvalidArgument)
	}
	switch c.Backend {
	case "", reactor.BackendAuto, reactor.BackendEpoll, reactor.BackendPoll:
		return nil
	}
	return fmt.Errorf("unknown backend %q: %w", c.Backend, api.ErrInvalidArgument)
}
