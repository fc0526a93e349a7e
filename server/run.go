// File: server/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Event loop: Wait, dispatch accept/read/write readiness, repeat until
// shutdown. Everything below runs on the goroutine that called Run.

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/internal/calc"
	"github.com/momentics/hioload-arith/internal/registry"
	"github.com/momentics/hioload-arith/internal/transport"
)

// maxDrainReads bounds how much trailing input of an oversized request is
// discarded before the connection is closed.
const maxDrainReads = 64

// Run serves until ctx is cancelled or Shutdown is called, then releases
// every peer and the listener and returns nil. A failing readiness wait is
// the only fatal condition and is returned wrapped in api.ErrWaitFailed.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return api.ErrServerClosed
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Shutdown() })
	defer stop()
	defer close(s.done)

	s.log.Info().
		Str("addr", s.Addr().String()).
		Str("backend", s.reactor.Backend()).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("waiting for connections")

	for !s.stopping.Load() {
		n, err := s.reactor.Wait(s.events, s.cfg.PollTimeout)
		if err != nil {
			s.log.Error().Err(err).Msg("readiness wait failed")
			s.markClosed()
			s.teardown()
			return fmt.Errorf("event loop: %w: %w", api.ErrWaitFailed, err)
		}
		for _, ev := range s.events[:n] {
			s.dispatch(ctx, ev)
		}
	}

	s.log.Info().Int("peers", s.reg.Len()).Msg("shutting down")
	s.markClosed()
	return s.teardown()
}

func (s *Server) dispatch(ctx context.Context, ev api.Event) {
	switch ev.Fd {
	case s.wake.FD():
		s.wake.Drain()
		return
	case s.reg.Listener():
		s.accept()
		return
	}

	p, ok := s.reg.Lookup(ev.Fd)
	if !ok {
		return
	}
	switch {
	case ev.Kind.Has(api.EventWrite) && p.Interest().Has(api.EventWrite):
		s.flush(p)
	case ev.Kind.Has(api.EventRead) && p.Interest().Has(api.EventRead):
		s.serve(ctx, p)
	case ev.Kind.Has(api.EventError):
		s.closePeer(p, "hangup", nil)
	}
}

// accept takes exactly one pending connection.
func (s *Server) accept() {
	fd, remote, err := s.listener.Accept()
	if err != nil {
		if !errors.Is(err, transport.ErrWouldBlock) {
			s.log.Warn().Err(err).Msg("accept failed")
		}
		return
	}
	p, err := s.reg.Register(fd, remote)
	if err != nil {
		transport.Close(fd)
		if errors.Is(err, api.ErrCapacityExceeded) {
			s.rejected.Add(1)
			s.metrics.ConnRejected()
			s.log.Warn().Str("remote", remote).Int("limit", s.reg.Cap()).Msg("connection refused: capacity exceeded")
			return
		}
		s.log.Error().Err(err).Str("remote", remote).Msg("register peer failed")
		return
	}
	s.accepted.Add(1)
	s.active.Add(1)
	s.metrics.ConnAccepted()
	s.log.Debug().Int("fd", p.FD()).Str("remote", remote).Msg("new connection")
}

// serve performs one request cycle: read, evaluate, respond.
func (s *Server) serve(ctx context.Context, p *registry.Peer) {
	buf := p.Buffer()
	n, err := transport.Read(p.FD(), buf)
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return
	case err != nil:
		s.closePeer(p, "read error", err)
		return
	case n == 0:
		s.closePeer(p, "peer closed", nil)
		return
	}
	s.countRead(p, n)
	p.Requests++
	s.requests.Add(1)

	var resp []byte
	if n > s.cfg.BufferSize {
		s.log.Warn().Int("fd", p.FD()).Int("limit", s.cfg.BufferSize).Msg("request too large")
		s.metrics.CountRequest(calc.RequestTooLarge.String())
		s.discardInput(p)
		p.MarkClosing()
		resp = calc.FormatResponse(calc.Result{}, calc.ErrRequestTooLarge)
	} else {
		ctx = api.WithPeer(ctx, api.PeerInfo{Fd: p.FD(), Remote: p.Remote()})
		resp, err = s.chain.Handle(ctx, buf[:n])
		if len(resp) == 0 && err != nil {
			resp = calc.FormatResponse(calc.Result{}, err)
		}
	}
	p.Enqueue(resp)
	s.flush(p)
}

// discardInput drops what is left of an oversized request so that closing
// the socket sends FIN rather than RST and the error reply is delivered.
func (s *Server) discardInput(p *registry.Peer) {
	buf := p.Buffer()
	for i := 0; i < maxDrainReads; i++ {
		n, err := transport.Read(p.FD(), buf)
		if n <= 0 || err != nil {
			return
		}
		s.countRead(p, n)
	}
}

// flush writes pending output. Unsent bytes switch the peer to write
// interest; no new request is read until they are gone.
func (s *Server) flush(p *registry.Peer) {
	before := p.BytesWritten
	done, err := p.Flush(func(b []byte) (int, error) {
		return transport.Write(p.FD(), b)
	})
	if w := p.BytesWritten - before; w > 0 {
		s.bytesOut.Add(w)
		s.metrics.AddBytesWritten(int(w))
	}
	if err != nil {
		s.closePeer(p, "write error", err)
		return
	}
	if !done {
		if p.Interest() != api.EventWrite {
			s.metrics.PartialWrite()
			s.log.Debug().Int("fd", p.FD()).Int("pending", p.Pending()).Msg("partial write, waiting for writability")
		}
		if err := s.reg.SetInterest(p, api.EventWrite); err != nil {
			s.closePeer(p, "reactor modify", err)
		}
		return
	}
	if p.State() == api.ConnClosing {
		s.closePeer(p, "closing after reply", nil)
		return
	}
	if err := s.reg.SetInterest(p, api.EventRead); err != nil {
		s.closePeer(p, "reactor modify", err)
	}
}

func (s *Server) countRead(p *registry.Peer, n int) {
	p.BytesRead += uint64(n)
	s.bytesIn.Add(uint64(n))
	s.metrics.AddBytesRead(n)
}

func (s *Server) closePeer(p *registry.Peer, reason string, cause error) {
	fd := p.FD()
	if err := s.reg.Unregister(fd); err != nil {
		s.log.Debug().Err(err).Int("fd", fd).Msg("unregister")
	}
	s.active.Add(-1)
	s.metrics.ConnClosed()
	ev := s.log.Debug()
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Int("fd", fd).
		Str("remote", p.Remote()).
		Str("reason", reason).
		Uint64("requests", p.Requests).
		Msg("connection closed")
}

// markClosed stops Shutdown from signalling a pipe that is about to close.
func (s *Server) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.stopping.Store(true)
	s.mu.Unlock()
}

// teardown releases peers, listener, wake pipe and reactor.
func (s *Server) teardown() error {
	for _, fd := range s.reg.ReadinessSet()[1:] {
		if p, ok := s.reg.Lookup(fd); ok {
			s.closePeer(p, "shutdown", nil)
		}
	}
	return errors.Join(
		s.listener.Close(),
		s.wake.Close(),
		s.reactor.Close(),
	)
}
