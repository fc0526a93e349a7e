//go:build !unix
// +build !unix

// File: reactor/poll_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-arith/api"
)

func newPoll() (api.Reactor, error) {
	return nil, fmt.Errorf("reactor: poll: %w", api.ErrNotSupported)
}
