//go:build unix
// +build unix

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// poll(2)-based reactor. Scans the whole interest set on every wait, like
// the select() loops it replaces, but without the FD_SETSIZE ceiling.

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-arith/api"
)

type pollReactor struct {
	fds   []unix.PollFd
	index map[int]int // fd -> position in fds
}

func newPoll() (api.Reactor, error) {
	return &pollReactor{index: make(map[int]int)}, nil
}

func pollMask(interest api.EventKind) int16 {
	var m int16
	if interest.Has(api.EventRead) {
		m |= unix.POLLIN
	}
	if interest.Has(api.EventWrite) {
		m |= unix.POLLOUT
	}
	return m
}

func (r *pollReactor) Add(fd int, interest api.EventKind) error {
	if _, ok := r.index[fd]; ok {
		return fmt.Errorf("poll add fd=%d: %w", fd, api.ErrInvalidArgument)
	}
	r.index[fd] = len(r.fds)
	r.fds = append(r.fds, unix.PollFd{Fd: int32(fd), Events: pollMask(interest)})
	return nil
}

func (r *pollReactor) Modify(fd int, interest api.EventKind) error {
	i, ok := r.index[fd]
	if !ok {
		return fmt.Errorf("poll mod fd=%d: %w", fd, api.ErrInvalidArgument)
	}
	r.fds[i].Events = pollMask(interest)
	return nil
}

// Remove swaps the last entry into the hole.
func (r *pollReactor) Remove(fd int) error {
	i, ok := r.index[fd]
	if !ok {
		return nil
	}
	last := len(r.fds) - 1
	if i != last {
		r.fds[i] = r.fds[last]
		r.index[int(r.fds[i].Fd)] = i
	}
	r.fds = r.fds[:last]
	delete(r.index, fd)
	return nil
}

func (r *pollReactor) Wait(events []api.Event, timeout time.Duration) (int, error) {
	for i := range r.fds {
		r.fds[i].Revents = 0
	}
	n, err := unix.Poll(r.fds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}
	out := 0
	for i := 0; i < len(r.fds) && out < len(events) && n > 0; i++ {
		re := r.fds[i].Revents
		if re == 0 {
			continue
		}
		n--
		var kind api.EventKind
		if re&unix.POLLIN != 0 {
			kind |= api.EventRead
		}
		if re&unix.POLLOUT != 0 {
			kind |= api.EventWrite
		}
		if re&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			kind |= api.EventError
		}
		events[out] = api.Event{Fd: int(r.fds[i].Fd), Kind: kind}
		out++
	}
	return out, nil
}

func (r *pollReactor) Len() int { return len(r.fds) }

func (r *pollReactor) Backend() string { return BackendPoll }

func (r *pollReactor) Close() error {
	r.fds = nil
	r.index = map[int]int{}
	return nil
}
