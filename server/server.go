// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server wiring: listener, reactor, connection registry and handler chain.

package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/control"
	"github.com/momentics/hioload-arith/internal/calc"
	"github.com/momentics/hioload-arith/internal/registry"
	"github.com/momentics/hioload-arith/internal/transport"
	"github.com/momentics/hioload-arith/pool"
	"github.com/momentics/hioload-arith/reactor"
)

var ErrAlreadyRunning = errors.New("server already running")

// Server is a single-goroutine arithmetic server. All connection state is
// owned by the goroutine executing Run.
type Server struct {
	cfg            Config
	log            zerolog.Logger
	handler        api.Handler
	middleware     []Middleware
	metrics        *control.Metrics
	tracerProvider trace.TracerProvider
	probes         *control.DebugProbes

	chain    api.Handler
	listener *transport.Listener
	reactor  api.Reactor
	reg      *registry.Registry
	bufs     *pool.BytePool
	wake     *wakePipe
	events   []api.Event

	mu       sync.Mutex // guards started, closed and startedAt
	started  bool
	closed   bool
	stopping atomic.Bool
	done     chan struct{}

	startedAt time.Time
	active    atomic.Int64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
	requests  atomic.Uint64
	bytesIn   atomic.Uint64
	bytesOut  atomic.Uint64
}

// NewServer binds the listening socket and prepares the event loop. A bind
// failure is returned wrapped in api.ErrTransport.
func NewServer(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     *cfg,
		log:     zerolog.Nop(),
		handler: calc.Handler{},
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.chain = s.buildChain()

	r, err := reactor.New(cfg.Backend)
	if err != nil {
		return nil, err
	}
	ln, err := transport.Listen(cfg.ListenAddr, cfg.Backlog)
	if err != nil {
		r.Close()
		return nil, err
	}
	wake, err := newWakePipe()
	if err != nil {
		ln.Close()
		r.Close()
		return nil, err
	}
	if err := r.Add(ln.FD(), api.EventRead); err != nil {
		wake.Close()
		ln.Close()
		r.Close()
		return nil, api.WrapError(api.ErrCodeTransport, "register listener", err)
	}
	if err := r.Add(wake.FD(), api.EventRead); err != nil {
		wake.Close()
		ln.Close()
		r.Close()
		return nil, api.WrapError(api.ErrCodeTransport, "register wake pipe", err)
	}

	s.reactor = r
	s.listener = ln
	s.wake = wake
	// One extra byte tells an oversized request apart from a full one.
	s.bufs = pool.NewBytePool(cfg.BufferSize + 1)
	s.reg = registry.New(r, ln.FD(), cfg.MaxConnections, s.bufs)
	s.events = make([]api.Event, cfg.MaxEvents)
	s.registerProbes()
	return s, nil
}

// buildChain orders the chain as: user middleware, tracing, metrics,
// logging, recovery, handler.
func (s *Server) buildChain() api.Handler {
	mw := append([]Middleware(nil), s.middleware...)
	if s.tracerProvider != nil {
		mw = append(mw, Tracing(s.tracerProvider))
	}
	if s.metrics != nil {
		mw = append(mw, Metrics(s.metrics))
	}
	mw = append(mw, Logging(s.log), Recover(s.log))
	return NewHandlerChain(s.handler, mw...)
}

func (s *Server) registerProbes() {
	if s.probes == nil {
		return
	}
	s.probes.RegisterProbe("loop.backend", func() any { return s.reactor.Backend() })
	s.probes.RegisterProbe("loop.listen_addr", func() any { return s.Addr().String() })
	s.probes.RegisterProbe("loop.stats", func() any { return s.Stats() })
	s.probes.RegisterProbe("loop.buffers_in_use", func() any { return s.bufs.InUse() })
	control.RegisterPlatformProbes(s.probes)
}

// Addr returns the bound listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Backend names the readiness primitive in use.
func (s *Server) Backend() string {
	return s.reactor.Backend()
}

// Stats returns a snapshot of the loop counters. Safe from any goroutine.
func (s *Server) Stats() api.ServerStats {
	s.mu.Lock()
	startedAt := s.startedAt
	s.mu.Unlock()
	return api.ServerStats{
		ActiveConns:   s.active.Load(),
		AcceptedConns: s.accepted.Load(),
		RejectedConns: s.rejected.Load(),
		Requests:      s.requests.Load(),
		BytesRead:     s.bytesIn.Load(),
		BytesWritten:  s.bytesOut.Load(),
		StartedAt:     startedAt,
	}
}

// Shutdown asks Run to unregister all peers, close the listener and return.
// When Run was never started the resources are released directly.
// Safe to call more than once and from any goroutine.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopping.Store(true)
	if s.started {
		err := s.wake.Signal()
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.teardown()
	close(s.done)
	return err
}

// Done is closed once the server has released all resources.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
