//go:build unix

package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/client"
	"github.com/momentics/hioload-arith/control"
	"github.com/momentics/hioload-arith/reactor"
	"github.com/momentics/hioload-arith/server"
)

type running struct {
	srv    *server.Server
	addr   string
	cancel context.CancelFunc
	errc   chan error
}

func startServer(t *testing.T, mutate func(*server.Config), opts ...server.ServerOption) *running {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := server.NewServer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{srv: srv, addr: srv.Addr().String(), cancel: cancel, errc: make(chan error, 1)}
	go func() { r.errc <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-srv.Done():
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return r
}

func dial(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Dial(context.Background(), client.DefaultConfig(addr))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func eval(t *testing.T, c *client.Client, expr string) string {
	t.Helper()
	reply, err := c.Eval(context.Background(), expr)
	if err != nil {
		t.Fatalf("Eval(%q): %v", expr, err)
	}
	return reply
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func backends() []string {
	b := []string{reactor.BackendPoll}
	if reactor.DetectBackend() == reactor.BackendEpoll {
		b = append(b, reactor.BackendEpoll)
	}
	return b
}

func TestServer_Replies(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			r := startServer(t, func(c *server.Config) { c.Backend = backend })
			if r.srv.Backend() != backend {
				t.Fatalf("Backend() = %q", r.srv.Backend())
			}
			c := dial(t, r.addr)

			tests := []struct{ req, want string }{
				{"3 + 4", "Result: 7.00"},
				{"10 / 4", "Result: 2.50"},
				{"1.5e1 * -2 trailing", "Result: -30.00"},
				{"4 / 0", "Error: division by zero"},
				{"5 ? 2", "Error: unsupported operator '?'"},
				{"hello", "Error: malformed input"},
				{"\n", "Error: malformed input"},
				{"3 + 4\x00", "Result: 7.00"},
				{"3 \xff 4", "Error: unsupported operator '\u00ff'"},
			}
			for _, tt := range tests {
				if got := eval(t, c, tt.req); got != tt.want {
					t.Errorf("%q -> %q, want %q", tt.req, got, tt.want)
				}
			}
		})
	}
}

func TestServer_SameRequestTwice(t *testing.T) {
	r := startServer(t, nil)
	c := dial(t, r.addr)
	first := eval(t, c, "6 * 7")
	second := eval(t, c, "6 * 7")
	if first != "Result: 42.00" || first != second {
		t.Fatalf("replies %q and %q", first, second)
	}
}

func TestServer_InterleavedClients(t *testing.T) {
	r := startServer(t, nil)
	a := dial(t, r.addr)
	b := dial(t, r.addr)

	for i := 0; i < 20; i++ {
		ra := eval(t, a, "1 + 1")
		rb := eval(t, b, "2 * 5")
		if ra != "Result: 2.00" || rb != "Result: 10.00" {
			t.Fatalf("round %d: a=%q b=%q", i, ra, rb)
		}
	}

	// Both requests in flight before either reply is read.
	ca, err := net.Dial("tcp", r.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer ca.Close()
	cb, err := net.Dial("tcp", r.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer cb.Close()
	ca.Write([]byte("9 - 3"))
	cb.Write([]byte("9 / 3"))
	for conn, want := range map[net.Conn]string{ca: "Result: 6.00", cb: "Result: 3.00"} {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil || string(buf[:n]) != want {
			t.Errorf("got %q (%v), want %q", buf[:n], err, want)
		}
	}
}

func TestServer_CloseWithoutSending(t *testing.T) {
	r := startServer(t, nil)
	keep := dial(t, r.addr)
	eval(t, keep, "1 + 2")

	quiet, err := net.Dial("tcp", r.addr)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second accept", func() bool { return r.srv.Stats().AcceptedConns == 2 })
	quiet.Close()
	waitFor(t, "quiet peer unregistered", func() bool { return r.srv.Stats().ActiveConns == 1 })

	if got := eval(t, keep, "2 + 2"); got != "Result: 4.00" {
		t.Fatalf("surviving peer got %q", got)
	}
}

func TestServer_CapacityExceeded(t *testing.T) {
	r := startServer(t, func(c *server.Config) { c.MaxConnections = 2 })
	a := dial(t, r.addr)
	b := dial(t, r.addr)
	eval(t, a, "1 + 1")
	eval(t, b, "1 + 1")

	extra, err := net.Dial("tcp", r.addr)
	if err != nil {
		t.Fatalf("kernel-level dial: %v", err)
	}
	defer extra.Close()
	extra.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = extra.Read(make([]byte, 16))
	var ne net.Error
	if err == nil || (errors.As(err, &ne) && ne.Timeout()) {
		t.Fatalf("over-limit connection not closed: %v", err)
	}
	waitFor(t, "rejection counted", func() bool { return r.srv.Stats().RejectedConns == 1 })

	if got := eval(t, a, "3 + 3"); got != "Result: 6.00" {
		t.Fatalf("existing peer a got %q", got)
	}
	if got := eval(t, b, "4 + 4"); got != "Result: 8.00" {
		t.Fatalf("existing peer b got %q", got)
	}
	if st := r.srv.Stats(); st.ActiveConns != 2 {
		t.Fatalf("active = %d", st.ActiveConns)
	}
}

func TestServer_OversizeRequest(t *testing.T) {
	m := control.NewMetrics(prometheus.NewRegistry())
	r := startServer(t, func(c *server.Config) { c.BufferSize = 16 }, server.WithMetrics(m))
	conn, err := net.Dial("tcp", r.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("1 + 1 " + strings.Repeat("x", 34))); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(reply) != "Error: request too large" {
		t.Fatalf("reply = %q", reply)
	}

	// Exactly at the limit is still served.
	c := dial(t, r.addr)
	if got := eval(t, c, "2 * 3           "); got != "Result: 6.00" {
		t.Fatalf("16-byte request got %q", got)
	}

	expected := `
# HELP arithd_requests_total Requests answered, by outcome.
# TYPE arithd_requests_total counter
arithd_requests_total{result="ok"} 1
arithd_requests_total{result="request_too_large"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "arithd_requests_total"); err != nil {
		t.Fatal(err)
	}
	if n := gatheredValue(t, m.Registry(), "arithd_request_duration_seconds"); n != 1 {
		t.Fatalf("duration samples = %v, want 1 (rejected request must not be timed)", n)
	}
}

// gatheredValue returns a counter's value or a histogram's sample count.
func gatheredValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		met := mf.GetMetric()[0]
		if h := met.GetHistogram(); h != nil {
			return float64(h.GetSampleCount())
		}
		return met.GetCounter().GetValue()
	}
	return 0
}

func TestServer_LargeReplyKeepsOrder(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 8<<20)
	h := api.HandlerFunc(func(_ context.Context, req []byte) ([]byte, error) {
		if string(req) == "big" {
			return big, nil
		}
		return append([]byte("small:"), req...), nil
	})
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			m := control.NewMetrics(prometheus.NewRegistry())
			r := startServer(t, func(c *server.Config) { c.Backend = backend },
				server.WithHandler(h), server.WithMetrics(m))
			conn, err := net.Dial("tcp", r.addr)
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			if _, err := conn.Write([]byte("big")); err != nil {
				t.Fatal(err)
			}
			// Let the first request be read on its own before the second is sent.
			waitFor(t, "first request", func() bool { return r.srv.Stats().Requests == 1 })
			if _, err := conn.Write([]byte("next")); err != nil {
				t.Fatal(err)
			}

			want := len(big) + len("small:next")
			conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			got := make([]byte, want)
			if _, err := io.ReadFull(conn, got); err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got[:len(big)], big) {
				t.Fatal("large reply corrupted")
			}
			if tail := string(got[len(big):]); tail != "small:next" {
				t.Fatalf("second reply = %q", tail)
			}
			if gatheredValue(t, m.Registry(), "arithd_partial_writes_total") == 0 {
				t.Fatal("expected at least one partial write")
			}
			if got := eval(t, dial(t, r.addr), "next"); got != "small:next" {
				t.Fatalf("server unusable after large reply: %q", got)
			}
		})
	}
}

func TestServer_Shutdown(t *testing.T) {
	r := startServer(t, nil)
	c := dial(t, r.addr)
	eval(t, c, "1 + 1")

	r.cancel()
	select {
	case err := <-r.errc:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := c.Eval(context.Background(), "1 + 1"); err == nil {
		t.Fatal("peer still served after shutdown")
	}
	if _, err := net.DialTimeout("tcp", r.addr, time.Second); err == nil {
		t.Fatal("listener still open after shutdown")
	}
	if err := r.srv.Run(context.Background()); !errors.Is(err, api.ErrServerClosed) {
		t.Fatalf("Run after shutdown = %v", err)
	}
	if err := r.srv.Shutdown(); err != nil {
		t.Fatalf("second Shutdown = %v", err)
	}
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := server.NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-srv.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestNewServer_BindFailure(t *testing.T) {
	r := startServer(t, nil)
	cfg := server.DefaultConfig()
	cfg.ListenAddr = r.addr
	if _, err := server.NewServer(cfg); !errors.Is(err, api.ErrTransport) {
		t.Fatalf("NewServer on busy port = %v", err)
	}
}

func TestServer_MetricsAndProbes(t *testing.T) {
	m := control.NewMetrics(prometheus.NewRegistry())
	dp := control.NewDebugProbes()
	r := startServer(t, nil, server.WithMetrics(m), server.WithDebugProbes(dp))
	c := dial(t, r.addr)
	eval(t, c, "1 + 1")
	eval(t, c, "1 / 0")
	eval(t, c, "2 + 2")

	expected := `
# HELP arithd_requests_total Requests answered, by outcome.
# TYPE arithd_requests_total counter
arithd_requests_total{result="division_by_zero"} 1
arithd_requests_total{result="ok"} 2
# HELP arithd_connections_accepted_total Connections accepted into the connection set.
# TYPE arithd_connections_accepted_total counter
arithd_connections_accepted_total 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"arithd_requests_total", "arithd_connections_accepted_total"); err != nil {
		t.Fatal(err)
	}

	state := dp.DumpState()
	stats, ok := state["loop.stats"].(api.ServerStats)
	if !ok || stats.Requests != 3 || stats.ActiveConns != 1 {
		t.Fatalf("loop.stats = %#v", state["loop.stats"])
	}
	if state["loop.buffers_in_use"] != int64(1) {
		t.Fatalf("loop.buffers_in_use = %v", state["loop.buffers_in_use"])
	}
}

func TestServer_HandlerPanicRecovered(t *testing.T) {
	h := api.HandlerFunc(func(context.Context, []byte) ([]byte, error) { panic("boom") })
	r := startServer(t, nil, server.WithHandler(h))
	c := dial(t, r.addr)
	for i := 0; i < 2; i++ {
		if got := eval(t, c, "1 + 1"); got != "Error: malformed input" {
			t.Fatalf("reply = %q", got)
		}
	}
}
