// File: internal/registry/peer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"errors"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/internal/transport"
)

// Peer is one accepted client connection.
type Peer struct {
	fd       int
	remote   string
	buf      []byte
	state    api.ConnState
	interest api.EventKind
	pending  *queue.Queue // of *chunk
	queued   int

	AcceptedAt   time.Time
	Requests     uint64
	BytesRead    uint64
	BytesWritten uint64
}

// chunk is a queued response with the offset of its first unsent byte.
type chunk struct {
	b   []byte
	off int
}

func newPeer(fd int, remote string, buf []byte) *Peer {
	return &Peer{
		fd:         fd,
		remote:     remote,
		buf:        buf,
		state:      api.ConnOpen,
		interest:   api.EventRead,
		pending:    queue.New(),
		AcceptedAt: time.Now(),
	}
}

// FD returns the peer's descriptor.
func (p *Peer) FD() int { return p.fd }

// Remote returns the peer's address as reported by accept.
func (p *Peer) Remote() string { return p.remote }

// Buffer returns the peer's read buffer.
func (p *Peer) Buffer() []byte { return p.buf }

func (p *Peer) State() api.ConnState { return p.state }

// MarkClosing flags the peer to be closed once its pending output is sent.
func (p *Peer) MarkClosing() { p.state = api.ConnClosing }

// Interest returns the readiness kinds the peer is registered for.
func (p *Peer) Interest() api.EventKind { return p.interest }

// Pending returns the number of queued, unsent response bytes.
func (p *Peer) Pending() int { return p.queued }

// Enqueue appends a response to the output FIFO. Empty responses are dropped.
func (p *Peer) Enqueue(b []byte) {
	if len(b) == 0 {
		return
	}
	p.pending.Add(&chunk{b: b})
	p.queued += len(b)
}

// Flush writes queued output in order until the FIFO is empty or write stops
// accepting bytes. done reports an empty FIFO. A short write or
// transport.ErrWouldBlock leaves the remainder queued and returns a nil error.
func (p *Peer) Flush(write func([]byte) (int, error)) (done bool, err error) {
	for p.pending.Length() > 0 {
		c := p.pending.Peek().(*chunk)
		n, werr := write(c.b[c.off:])
		if n > 0 {
			c.off += n
			p.queued -= n
			p.BytesWritten += uint64(n)
		}
		if werr != nil {
			if errors.Is(werr, transport.ErrWouldBlock) {
				return false, nil
			}
			return false, werr
		}
		if c.off < len(c.b) {
			return false, nil
		}
		p.pending.Remove()
	}
	return true, nil
}
