// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime control plane of the arithmetic server: Prometheus metrics,
// debug probes, the hot-reloadable configuration store and the HTTP router
// that exposes them.
//
// Everything here is safe for concurrent use; the event loop writes metrics
// while the HTTP side reads them.
package control
