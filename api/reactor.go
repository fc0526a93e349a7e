// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness multiplexers used by the
// event loop (epoll, poll(2), ...). The loop's dispatch logic only sees this
// contract, so the polling strategy can be swapped without touching it.

package api

import "time"

// EventKind is a bit set of readiness conditions.
type EventKind uint8

const (
	EventRead EventKind = 1 << iota
	EventWrite
	EventError
)

// Has reports whether all bits of k2 are set in k.
func (k EventKind) Has(k2 EventKind) bool { return k&k2 == k2 }

// String renders the set as "r", "w", "e" flags.
func (k EventKind) String() string {
	b := []byte("---")
	if k.Has(EventRead) {
		b[0] = 'r'
	}
	if k.Has(EventWrite) {
		b[1] = 'w'
	}
	if k.Has(EventError) {
		b[2] = 'e'
	}
	return string(b)
}

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd   int       // file descriptor that became ready
	Kind EventKind // what it is ready for
}

// Reactor defines the common interface for a level-triggered readiness
// multiplexer. Implementations are not safe for concurrent use: a single
// event loop owns them.
type Reactor interface {
	// Add starts monitoring fd for the given interest.
	Add(fd int, interest EventKind) error

	// Modify replaces the interest set of an already monitored fd.
	Modify(fd int, interest EventKind) error

	// Remove stops monitoring fd. Removing an unknown fd is not an error.
	Remove(fd int) error

	// Wait blocks until at least one fd is ready or timeout elapses
	// (timeout <= 0 blocks indefinitely) and fills events. An interrupted
	// wait returns (0, nil).
	Wait(events []Event, timeout time.Duration) (int, error)

	// Len returns the number of monitored fds.
	Len() int

	// Backend names the multiplexing primitive, e.g. "epoll".
	Backend() string

	// Close releases the backend.
	Close() error
}
