// Package transport
// Author: momentics <momentics@gmail.com>
//
// Platform-independent declarations shared by the socket implementations.

package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/momentics/hioload-arith/api"
)

// ErrWouldBlock is returned when a non-blocking call has nothing to do yet.
var ErrWouldBlock = errors.New("transport: operation would block")

// DefaultBacklog is the listen(2) backlog used when none is configured.
const DefaultBacklog = 128

// splitListenAddr parses "host:port" into its host part and numeric port.
func splitListenAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("listen address %q: %w", addr, errors.Join(err, api.ErrInvalidArgument))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port, err = net.LookupPort("tcp", portStr)
		if err != nil {
			return "", 0, fmt.Errorf("listen port %q: %w", portStr, errors.Join(err, api.ErrInvalidArgument))
		}
	}
	if port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("listen port %d out of range: %w", port, api.ErrInvalidArgument)
	}
	return host, port, nil
}
