// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/control"
)

// ServerOption customizes server initialization.
type ServerOption func(*Server)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithHandler replaces the arithmetic handler at the core of the chain.
func WithHandler(h api.Handler) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.handler = h
		}
	}
}

// WithMiddleware attaches middleware in FIFO order.
func WithMiddleware(mw ...Middleware) ServerOption {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithMetrics records connection and request metrics into m.
func WithMetrics(m *control.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTracerProvider emits one span per request cycle.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithDebugProbes publishes loop state through dp.
func WithDebugProbes(dp *control.DebugProbes) ServerOption {
	return func(s *Server) {
		s.probes = dp
	}
}
