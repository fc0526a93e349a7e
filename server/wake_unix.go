//go:build unix
// +build unix

// File: server/wake_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-arith/api"
)

// wakePipe interrupts a blocked readiness wait from another goroutine.
type wakePipe struct {
	r, w int
}

func newWakePipe() (*wakePipe, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, "wake pipe", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, api.WrapError(api.ErrCodeTransport, "wake pipe nonblock", err)
		}
	}
	return &wakePipe{r: p[0], w: p[1]}, nil
}

// FD is the read end watched by the reactor.
func (w *wakePipe) FD() int { return w.r }

// Signal makes the read end readable. A full pipe already is.
func (w *wakePipe) Signal() error {
	_, err := unix.Write(w.w, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// Drain empties the pipe.
func (w *wakePipe) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *wakePipe) Close() error {
	unix.Close(w.w)
	return unix.Close(w.r)
}
