package control_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/momentics/hioload-arith/control"
)

func TestMetrics_Counters(t *testing.T) {
	m := control.NewMetrics(prometheus.NewRegistry())
	m.ConnAccepted()
	m.ConnAccepted()
	m.ConnClosed()
	m.ConnRejected()
	m.ObserveRequest("ok", time.Microsecond)
	m.ObserveRequest("ok", time.Microsecond)
	m.ObserveRequest("division_by_zero", time.Microsecond)
	m.AddBytesRead(5)
	m.AddBytesWritten(12)
	m.AddBytesWritten(-1)

	expected := `
# HELP arithd_connections_active Peers currently registered.
# TYPE arithd_connections_active gauge
arithd_connections_active 1
# HELP arithd_requests_total Requests answered, by outcome.
# TYPE arithd_requests_total counter
arithd_requests_total{result="division_by_zero"} 1
arithd_requests_total{result="ok"} 2
# HELP arithd_written_bytes_total Bytes written to peers.
# TYPE arithd_written_bytes_total counter
arithd_written_bytes_total 12
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"arithd_connections_active", "arithd_requests_total", "arithd_written_bytes_total"); err != nil {
		t.Fatal(err)
	}
}

func TestMetrics_CountRequestSkipsDuration(t *testing.T) {
	m := control.NewMetrics(prometheus.NewRegistry())
	m.CountRequest("request_too_large")
	m.ObserveRequest("ok", time.Millisecond)

	expected := `
# HELP arithd_requests_total Requests answered, by outcome.
# TYPE arithd_requests_total counter
arithd_requests_total{result="ok"} 1
arithd_requests_total{result="request_too_large"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "arithd_requests_total"); err != nil {
		t.Fatal(err)
	}
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "arithd_request_duration_seconds" {
			continue
		}
		if n := mf.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
			t.Fatalf("duration samples = %d, want 1", n)
		}
		return
	}
	t.Fatal("arithd_request_duration_seconds not gathered")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *control.Metrics
	m.ConnAccepted()
	m.ConnClosed()
	m.ObserveRequest("ok", 0)
	m.CountRequest("request_too_large")
	m.PartialWrite()
	if m.Registry() != nil {
		t.Fatal("nil metrics must have no registry")
	}
}

func TestConfigStore_OnReload(t *testing.T) {
	cs := control.NewConfigStore()
	var (
		mu    sync.Mutex
		calls []map[string]any
	)
	cs.OnReload(func(changed map[string]any) {
		mu.Lock()
		calls = append(calls, changed)
		mu.Unlock()
	})

	cs.SetConfig(map[string]any{"log_level": "info", "listen_addr": ":3890"})
	cs.SetConfig(map[string]any{"log_level": "info"})
	cs.SetConfig(map[string]any{"log_level": "debug"})

	want := []map[string]any{
		{"log_level": "info", "listen_addr": ":3890"},
		{"log_level": "debug"},
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("reload calls mismatch (-want +got):\n%s", diff)
	}
	if v, _ := cs.Get("log_level"); v != "debug" {
		t.Fatalf("log_level = %v", v)
	}
	snap := cs.GetSnapshot()
	snap["log_level"] = "mutated"
	if v, _ := cs.Get("log_level"); v != "debug" {
		t.Fatal("snapshot aliases the store")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("loop.peers", func() any { return 3 })
	state := dp.DumpState()
	if state["loop.peers"] != 3 {
		t.Fatalf("loop.peers = %v", state["loop.peers"])
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Fatal("platform probes missing")
	}
	dp.UnregisterProbe("loop.peers")
	for _, n := range dp.Names() {
		if n == "loop.peers" {
			t.Fatal("probe not removed")
		}
	}
}

func TestRouter(t *testing.T) {
	m := control.NewMetrics(nil)
	m.ConnAccepted()
	dp := control.NewDebugProbes()
	dp.RegisterProbe("loop.peers", func() any { return 1 })
	cs := control.NewConfigStore()
	cs.SetConfig(map[string]any{"listen_addr": ":3890"})
	h := control.NewRouter(control.RouterOptions{Metrics: m, Probes: dp, Config: cs})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/healthz"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("/healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec := get("/metrics"); rec.Code != http.StatusOK ||
		!strings.Contains(rec.Body.String(), "arithd_connections_accepted_total 1") {
		t.Fatalf("/metrics = %d\n%s", rec.Code, rec.Body.String())
	}

	rec := get("/debug/state")
	var state map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode /debug/state: %v", err)
	}
	if state["loop.peers"] != float64(1) {
		t.Fatalf("/debug/state = %v", state)
	}

	rec = get("/debug/config")
	var cfg map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil || cfg["listen_addr"] != ":3890" {
		t.Fatalf("/debug/config = %s (%v)", rec.Body.String(), err)
	}

	if rec := get("/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("/nope = %d", rec.Code)
	}
}

func TestRouter_WithoutMetrics(t *testing.T) {
	h := control.NewRouter(control.RouterOptions{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("/metrics without collectors = %d", rec.Code)
	}
}
