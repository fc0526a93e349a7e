// File: internal/registry/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"errors"
	"maps"
	"slices"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/internal/transport"
	"github.com/momentics/hioload-arith/pool"
)

// Registry tracks the listening endpoint and every live peer. Each peer in
// the map is registered with the reactor, and each reactor member other than
// the listener (and the loop's own wake descriptor) is in the map.
type Registry struct {
	reactor  api.Reactor
	listener int
	peers    map[int]*Peer
	maxPeers int
	bufs     *pool.BytePool
}

// New creates a registry bound to reactor r. ln is the listening descriptor,
// already added to r by the caller. maxPeers <= 0 means no limit.
func New(r api.Reactor, ln int, maxPeers int, bufs *pool.BytePool) *Registry {
	return &Registry{
		reactor:  r,
		listener: ln,
		peers:    make(map[int]*Peer),
		maxPeers: maxPeers,
		bufs:     bufs,
	}
}

// Register adds an accepted descriptor with read interest. The caller keeps
// ownership of fd when an error is returned.
func (r *Registry) Register(fd int, remote string) (*Peer, error) {
	if r.maxPeers > 0 && len(r.peers) >= r.maxPeers {
		return nil, api.NewError(api.ErrCodeCapacityExceeded, "register peer").
			WithContext("fd", fd).
			WithContext("max", r.maxPeers)
	}
	if _, dup := r.peers[fd]; dup {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "peer already registered").WithContext("fd", fd)
	}
	if err := r.reactor.Add(fd, api.EventRead); err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, "reactor add", err).WithContext("fd", fd)
	}
	p := newPeer(fd, remote, r.bufs.GetBuffer())
	r.peers[fd] = p
	return p, nil
}

// Unregister drops the peer, closes its descriptor and recycles its buffer.
// Unknown descriptors are ignored.
func (r *Registry) Unregister(fd int) error {
	p, ok := r.peers[fd]
	if !ok {
		return nil
	}
	delete(r.peers, fd)
	errRemove := r.reactor.Remove(fd)
	errClose := transport.Close(fd)
	r.bufs.PutBuffer(p.buf)
	p.buf = nil
	p.state = api.ConnClosing
	return errors.Join(errRemove, errClose)
}

// SetInterest switches the readiness kinds the reactor reports for p.
func (r *Registry) SetInterest(p *Peer, interest api.EventKind) error {
	if p.interest == interest {
		return nil
	}
	if err := r.reactor.Modify(p.fd, interest); err != nil {
		return api.WrapError(api.ErrCodeTransport, "reactor modify", err).WithContext("fd", p.fd)
	}
	p.interest = interest
	return nil
}

// Lookup returns the peer registered under fd.
func (r *Registry) Lookup(fd int) (*Peer, bool) {
	p, ok := r.peers[fd]
	return p, ok
}

// ReadinessSet returns the listener followed by all peer descriptors in
// ascending order.
func (r *Registry) ReadinessSet() []int {
	set := make([]int, 0, len(r.peers)+1)
	set = append(set, r.listener)
	return append(set, slices.Sorted(maps.Keys(r.peers))...)
}

// Listener returns the listening descriptor.
func (r *Registry) Listener() int { return r.listener }

// Len returns the number of registered peers.
func (r *Registry) Len() int { return len(r.peers) }

// Cap returns the peer limit, 0 when unlimited.
func (r *Registry) Cap() int {
	if r.maxPeers < 0 {
		return 0
	}
	return r.maxPeers
}

// Close unregisters every peer. The listener is left to its owner.
func (r *Registry) Close() error {
	var errs []error
	for _, fd := range slices.Sorted(maps.Keys(r.peers)) {
		errs = append(errs, r.Unregister(fd))
	}
	return errors.Join(errs...)
}
