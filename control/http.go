// control/http.go
// Author: momentics <momentics@gmail.com>
//
// HTTP exposition of metrics, probes and configuration.

package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions selects what the control router exposes. Nil members are
// served as 404.
type RouterOptions struct {
	Metrics *Metrics
	Probes  *DebugProbes
	Config  *ConfigStore
}

// NewRouter builds the control-plane handler:
//
//	GET /healthz        liveness
//	GET /metrics        Prometheus exposition
//	GET /debug/state    probe dump as JSON
//	GET /debug/config   effective configuration as JSON
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if reg := opts.Metrics.Registry(); reg != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	if opts.Probes != nil {
		r.Get("/debug/state", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, opts.Probes.DumpState())
		})
	}
	if opts.Config != nil {
		r.Get("/debug/config", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, opts.Config.GetSnapshot())
		})
	}
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HTTPServer runs the control router on its own listener.
type HTTPServer struct {
	srv *http.Server
	ln  net.Listener
}

// ListenHTTP binds addr and returns a server ready for Serve.
func ListenHTTP(addr string, h http.Handler) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		srv: &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *HTTPServer) Addr() net.Addr { return s.ln.Addr() }

// Serve blocks until Shutdown. A clean shutdown returns nil.
func (s *HTTPServer) Serve() error {
	if err := s.srv.Serve(s.ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
