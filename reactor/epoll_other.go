//go:build !linux
// +build !linux

// File: reactor/epoll_other.go
// Author: momentics <momentics@gmail.com>
//
// epoll is Linux-only.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-arith/api"
)

func newEpoll() (api.Reactor, error) {
	return nil, fmt.Errorf("reactor: epoll: %w", api.ErrNotSupported)
}
