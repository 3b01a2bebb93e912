// Package metrics exposes Prometheus counters and gauges for presence,
// liveness, and streaming. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signage"

// Metrics holds Prometheus counters and gauges for the signage service.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	connections     *prometheus.GaugeVec
	sessions        *prometheus.GaugeVec
	broadcastsTotal *prometheus.CounterVec
	droppedTotal    prometheus.Counter
	sweepsTotal     prometheus.Counter
	statusChanges   *prometheus.CounterVec
	launchesTotal   *prometheus.CounterVec
	segmentsDeleted prometheus.Counter
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_connections",
			Help:      "Open presence connections by role",
		}, []string{"role"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_sessions",
			Help:      "Pipeline sessions by variant and status",
		}, []string{"variant", "status"}),
		broadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "Events fanned out through the presence bus by kind",
		}, []string{"kind"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_dropped_messages_total",
			Help:      "Messages dropped because a connection's send buffer was full or closed",
		}),
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_sweeps_total",
			Help:      "Completed liveness sweeps",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_status_changes_total",
			Help:      "Screen status transitions by resulting status",
		}, []string{"status"}),
		launchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_launches_total",
			Help:      "Encoder launch attempts by variant and result",
		}, []string{"variant", "result"}),
		segmentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_deleted_total",
			Help:      "Expired HLS segment files removed by the garbage collector",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.connections,
		m.sessions,
		m.broadcastsTotal,
		m.droppedTotal,
		m.sweepsTotal,
		m.statusChanges,
		m.launchesTotal,
		m.segmentsDeleted,
	)

	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// SetConnections sets the open connection gauge for a role.
func (m *Metrics) SetConnections(role string, n int) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(role).Set(float64(n))
}

// ResetSessions clears the session gauge before it is repopulated.
func (m *Metrics) ResetSessions() {
	if m == nil {
		return
	}
	m.sessions.Reset()
}

// SetSessions sets the session gauge for a variant and status.
func (m *Metrics) SetSessions(variant, status string, n int) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(variant, status).Set(float64(n))
}

// IncBroadcast counts one fanned-out event.
func (m *Metrics) IncBroadcast(kind string) {
	if m == nil {
		return
	}
	m.broadcastsTotal.WithLabelValues(kind).Inc()
}

// IncDropped counts one dropped outbound message.
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

// IncSweeps counts one completed liveness sweep.
func (m *Metrics) IncSweeps() {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
}

// AddStatusChanges counts screens that moved to status.
func (m *Metrics) AddStatusChanges(status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.statusChanges.WithLabelValues(status).Add(float64(n))
}

// IncLaunch counts one encoder launch attempt.
func (m *Metrics) IncLaunch(variant, result string) {
	if m == nil {
		return
	}
	m.launchesTotal.WithLabelValues(variant, result).Inc()
}

// AddSegmentsDeleted counts removed segment files.
func (m *Metrics) AddSegmentsDeleted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.segmentsDeleted.Add(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
