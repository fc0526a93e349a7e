// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral factory and backend selection.

package reactor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/hioload-arith/api"
)

// Backend names accepted by New.
const (
	BackendAuto  = "auto"
	BackendEpoll = "epoll"
	BackendPoll  = "poll"
)

// DefaultMaxEvents bounds how many ready events one Wait call reports.
const DefaultMaxEvents = 128

// New constructs the requested backend. BackendAuto (or "") resolves through
// DetectBackend.
func New(backend string) (api.Reactor, error) {
	if backend == "" || backend == BackendAuto {
		backend = DetectBackend()
	}
	switch backend {
	case BackendEpoll:
		return newEpoll()
	case BackendPoll:
		return newPoll()
	default:
		return nil, fmt.Errorf("reactor: unknown backend %q: %w", backend, api.ErrInvalidArgument)
	}
}

// DetectBackend returns the best readiness primitive for the host platform.
func DetectBackend() string {
	if runtime.GOOS == "linux" {
		return BackendEpoll
	}
	return BackendPoll
}

// timeoutMillis converts a Wait timeout into the millisecond argument of
// epoll_wait/poll. Non-positive values block forever.
func timeoutMillis(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	ms := d.Milliseconds()
	if ms == 0 {
		return 1
	}
	return int(ms)
}
