//go:build !unix
// +build !unix

// File: internal/transport/socket_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without unix sockets in x/sys.

package transport

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-arith/api"
)

// Listener is unavailable on this platform.
type Listener struct{}

// Listen always fails with api.ErrNotSupported.
func Listen(addr string, backlog int) (*Listener, error) {
	if _, _, err := splitListenAddr(addr); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("transport: listen %s: %w", addr, api.ErrNotSupported)
}

func (l *Listener) FD() int                      { return -1 }
func (l *Listener) Addr() net.Addr               { return &net.TCPAddr{} }
func (l *Listener) Accept() (int, string, error) { return -1, "", api.ErrNotSupported }
func (l *Listener) Close() error                 { return nil }
func Read(fd int, p []byte) (int, error)         { return 0, api.ErrNotSupported }
func Write(fd int, p []byte) (int, error)        { return 0, api.ErrNotSupported }
func Close(fd int) error                         { return api.ErrNotSupported }
