//go:build !unix
// +build !unix

// File: server/wake_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-arith/api"

type wakePipe struct{}

func newWakePipe() (*wakePipe, error) { return nil, api.ErrNotSupported }

func (w *wakePipe) FD() int       { return -1 }
func (w *wakePipe) Signal() error { return api.ErrNotSupported }
func (w *wakePipe) Drain()        {}
func (w *wakePipe) Close() error  { return nil }
