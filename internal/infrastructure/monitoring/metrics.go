package monitoring

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/cookiefetch/internal/providers/http/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cookiefetch"

// Metrics holds all Prometheus metrics of one server instance.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	StreamedBytes prometheus.Counter

	// Pool metrics
	PoolClients *prometheus.GaugeVec
	PoolCreated prometheus.Gauge

	// Session metrics
	SessionsActive prometheus.Gauge
	IPCCalls       *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a collector backed by its own registry, so several
// servers can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Total number of fetches by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time until the response headers of a fetch were available",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		StreamedBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streamed_bytes_total",
				Help:      "Response body bytes sent downstream through sessions",
			},
		),

		PoolClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_clients",
				Help:      "Pooled clients by state",
			},
			[]string{"state"},
		),
		PoolCreated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_clients_created",
				Help:      "Clients created by the pool",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live streaming sessions",
			},
		),
		IPCCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ipc_calls_total",
				Help:      "Boundary protocol calls by operation and status",
			},
			[]string{"op", "status"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Total number of WebSocket messages",
			},
			[]string{"type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordIPC records a boundary protocol call
func (m *Metrics) RecordIPC(op string, status int) {
	m.IPCCalls.WithLabelValues(op, http.StatusText(status)).Inc()
}

// FetchCompleted implements fetch.Observer.
func (m *Metrics) FetchCompleted(outcome string, elapsed time.Duration) {
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ChunkStreamed implements fetch.Observer.
func (m *Metrics) ChunkStreamed(bytes int) {
	m.StreamedBytes.Add(float64(bytes))
}

// PoolChanged implements client.Observer.
func (m *Metrics) PoolChanged(s client.Stats) {
	m.PoolClients.WithLabelValues("idle").Set(float64(s.Idle))
	m.PoolClients.WithLabelValues("in_use").Set(float64(s.InUse))
	m.PoolCreated.Set(float64(s.Created))
}

// SessionsChanged implements session.Observer.
func (m *Metrics) SessionsChanged(live int) {
	m.SessionsActive.Set(float64(live))
}

// RecordWSMessage records an outbound WebSocket message
func (m *Metrics) RecordWSMessage(msgType string) {
	m.WSMessages.WithLabelValues(msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
