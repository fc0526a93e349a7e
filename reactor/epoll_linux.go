//go:build linux
// +build linux

// File: reactor/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor. Level-triggered: a listener with several
// pending connections keeps reporting readiness until all are accepted.

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-arith/api"
)

// epollReactor implements api.Reactor using Linux epoll.
type epollReactor struct {
	epfd     int
	interest map[int]api.EventKind
	raw      []unix.EpollEvent
}

// newEpoll creates a new instance of epollReactor.
func newEpoll() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:     epfd,
		interest: make(map[int]api.EventKind),
		raw:      make([]unix.EpollEvent, DefaultMaxEvents),
	}, nil
}

func epollMask(interest api.EventKind) uint32 {
	var m uint32
	if interest.Has(api.EventRead) {
		m |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest.Has(api.EventWrite) {
		m |= unix.EPOLLOUT
	}
	return m
}

// Add registers fd in the epoll interest list.
func (r *epollReactor) Add(fd int, interest api.EventKind) error {
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd=%d: %w", fd, err)
	}
	r.interest[fd] = interest
	return nil
}

// Modify changes the interest set of a registered fd.
func (r *epollReactor) Modify(fd int, interest api.EventKind) error {
	if _, ok := r.interest[fd]; !ok {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, api.ErrInvalidArgument)
	}
	ev := unix.EpollEvent{Events: epollMask(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd=%d: %w", fd, err)
	}
	r.interest[fd] = interest
	return nil
}

// Remove deletes fd from the epoll interest list.
func (r *epollReactor) Remove(fd int) error {
	if _, ok := r.interest[fd]; !ok {
		return nil
	}
	delete(r.interest, fd)
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil && err != unix.ENOENT && err != unix.EBADF {
		return fmt.Errorf("epoll ctl del fd=%d: %w", fd, err)
	}
	return nil
}

// Wait blocks for readiness and translates raw epoll events.
func (r *epollReactor) Wait(events []api.Event, timeout time.Duration) (int, error) {
	limit := len(events)
	if limit > len(r.raw) {
		r.raw = make([]unix.EpollEvent, limit)
	}
	n, err := unix.EpollWait(r.epfd, r.raw[:limit], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := r.raw[i]
		var kind api.EventKind
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			kind |= api.EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			kind |= api.EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			kind |= api.EventError
		}
		events[i] = api.Event{Fd: int(ev.Fd), Kind: kind}
	}
	return n, nil
}

func (r *epollReactor) Len() int { return len(r.interest) }

func (r *epollReactor) Backend() string { return BackendEpoll }

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	r.interest = map[int]api.EventKind{}
	return unix.Close(r.epfd)
}
