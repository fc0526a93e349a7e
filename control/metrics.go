// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the event loop. A nil *Metrics is valid and
// records nothing.

package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "arithd"

// Metrics holds the server's collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	accepted     prometheus.Counter
	rejected     prometheus.Counter
	closed       prometheus.Counter
	active       prometheus.Gauge
	requests     *prometheus.CounterVec
	duration     prometheus.Histogram
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
	partial      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// gets a fresh registry that also carries the Go and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := &Metrics{
		registry: reg,
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted into the connection set.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed on accept because the set was full.",
		}),
		closed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_closed_total",
			Help:      "Peers unregistered after close, error or oversize request.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Peers currently registered.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests answered, by outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent in the handler chain per request.",
			Buckets:   []float64{1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 1e-2},
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "read_bytes_total",
			Help:      "Bytes read from peers.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "written_bytes_total",
			Help:      "Bytes written to peers.",
		}),
		partial: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "partial_writes_total",
			Help:      "Responses that needed more than one write.",
		}),
	}
	reg.MustRegister(m.accepted, m.rejected, m.closed, m.active, m.requests,
		m.duration, m.bytesRead, m.bytesWritten, m.partial)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

func (m *Metrics) ConnRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.closed.Inc()
	m.active.Dec()
}

// ObserveRequest records one answered request. result is "ok" or a
// protocol failure kind.
func (m *Metrics) ObserveRequest(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

// CountRequest records a request answered without running the handler, so
// it has no meaningful duration.
func (m *Metrics) CountRequest(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *Metrics) AddBytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) AddBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

func (m *Metrics) PartialWrite() {
	if m == nil {
		return
	}
	m.partial.Inc()
}
