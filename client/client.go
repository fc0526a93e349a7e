// File: client/client.go
// Package client provides a small blocking client for the arithmetic server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The protocol has no framing: one write is one request and the server
// answers each with a single write, so the client reads one reply per call.

package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-arith/api"
)

// ClientConfig holds all configurable parameters for the client.
type ClientConfig struct {
	Addr         string        // host:port of the server
	DialTimeout  time.Duration // connect timeout
	ReadTimeout  time.Duration // reply deadline when the context has none
	WriteTimeout time.Duration // request deadline when the context has none
	MaxReply     int           // read buffer size
}

// DefaultConfig returns sensible defaults for addr.
func DefaultConfig(addr string) ClientConfig {
	return ClientConfig{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxReply:     1024,
	}
}

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("client closed")

// Client is one connection to the server. Calls are serialized.
type Client struct {
	cfg    ClientConfig
	mu     sync.Mutex
	conn   net.Conn
	buf    []byte
	closed atomic.Bool
}

// Dial connects to cfg.Addr.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.MaxReply <= 0 {
		cfg.MaxReply = 1024
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, "dial "+cfg.Addr, err)
	}
	return &Client{cfg: cfg, conn: conn, buf: make([]byte, cfg.MaxReply)}, nil
}

// Send writes raw request bytes and returns the raw reply.
func (c *Client) Send(ctx context.Context, req []byte) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return "", err
	}
	if _, err := c.conn.Write(req); err != nil {
		return "", api.WrapError(api.ErrCodeTransport, "write request", err)
	}
	if err := c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return "", err
	}
	n, err := c.conn.Read(c.buf)
	if err != nil {
		return "", api.WrapError(api.ErrCodeTransport, "read reply", err)
	}
	return string(c.buf[:n]), nil
}

// Eval sends an expression such as "3 + 4" and returns the raw reply.
func (c *Client) Eval(ctx context.Context, expr string) (string, error) {
	return c.Send(ctx, []byte(expr))
}

// Compute is Eval followed by ParseReply.
func (c *Client) Compute(ctx context.Context, expr string) (float64, error) {
	reply, err := c.Eval(ctx, expr)
	if err != nil {
		return 0, err
	}
	return ParseReply(reply)
}

// Close cleanly shuts down the client; idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

func deadline(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if fallback <= 0 {
		return time.Time{}
	}
	return time.Now().Add(fallback)
}

// ReplyError is an "Error: ..." reply from the server.
type ReplyError struct {
	Reason string
}

func (e *ReplyError) Error() string { return "server: " + e.Reason }

// Unwrap lets errors.Is(err, api.ErrProtocol) match.
func (e *ReplyError) Unwrap() error { return api.ErrProtocol }

// ParseReply decodes "Result: <value>" or returns a *ReplyError for
// "Error: <reason>".
func ParseReply(reply string) (float64, error) {
	switch {
	case strings.HasPrefix(reply, "Result: "):
		v, err := strconv.ParseFloat(strings.TrimPrefix(reply, "Result: "), 64)
		if err != nil {
			return 0, fmt.Errorf("bad result %q: %w", reply, err)
		}
		return v, nil
	case strings.HasPrefix(reply, "Error: "):
		return 0, &ReplyError{Reason: strings.TrimPrefix(reply, "Error: ")}
	default:
		return 0, fmt.Errorf("unrecognized reply %q", reply)
	}
}
