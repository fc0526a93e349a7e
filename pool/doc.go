// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory reuse for the event loop: fixed-size read buffers handed to peers on
// accept and taken back on teardown, backed by a typed sync.Pool.
package pool
