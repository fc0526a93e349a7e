// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw-descriptor TCP transport for the event loop: a non-blocking,
// dual-stack listening socket plus read/write/close helpers that map
// EAGAIN and EINTR onto ErrWouldBlock so the loop never blocks outside the
// readiness wait. Strictly separated by build tags (unix / other).

package transport
