// File: api/handler.go
// Package api defines Handler interface.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "context"

// Handler turns one request payload into exactly one response payload.
// The returned error classifies the outcome (for logs and metrics); the
// response is written to the peer regardless.
type Handler interface {
	Handle(ctx context.Context, req []byte) ([]byte, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req []byte) ([]byte, error) {
	return f(ctx, req)
}

// PeerInfo describes the connection a request arrived on.
type PeerInfo struct {
	Fd     int
	Remote string
}

type peerKey struct{}

// WithPeer returns a copy of ctx carrying the peer description.
func WithPeer(ctx context.Context, p PeerInfo) context.Context {
	return context.WithValue(ctx, peerKey{}, p)
}

// PeerFromContext extracts the peer stored by WithPeer.
func PeerFromContext(ctx context.Context) (PeerInfo, bool) {
	p, ok := ctx.Value(peerKey{}).(PeerInfo)
	return p, ok
}
