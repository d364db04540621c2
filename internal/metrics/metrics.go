// Package metrics provides Prometheus metrics for the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	TaskToggles       *prometheus.CounterVec
	XPAwarded         prometheus.Counter
	PersistenceErrors *prometheus.CounterVec
	Migrations        *prometheus.CounterVec
	Generations       *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	SessionEvictions  prometheus.Counter
	RequestDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TaskToggles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralfit_task_toggles_total",
				Help: "Completion flag changes by task kind and direction.",
			},
			[]string{"kind", "direction"},
		),
		XPAwarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "neuralfit_xp_awarded_total",
				Help: "Total progression XP awarded.",
			},
		),
		PersistenceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralfit_persistence_errors_total",
				Help: "Failed write-through attempts by operation.",
			},
			[]string{"operation"},
		),
		Migrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralfit_library_migrations_total",
				Help: "Library list resolutions by domain and source.",
			},
			[]string{"domain", "source"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neuralfit_generations_total",
				Help: "Content generation attempts by kind and status.",
			},
			[]string{"kind", "status"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "neuralfit_active_sessions",
				Help: "Number of open tracker sessions.",
			},
		),
		SessionEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "neuralfit_session_evictions_total",
				Help: "Tracker sessions closed after sitting idle.",
			},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neuralfit_http_request_duration_seconds",
				Help:    "HTTP request duration by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.TaskToggles)
	reg.MustRegister(m.XPAwarded)
	reg.MustRegister(m.PersistenceErrors)
	reg.MustRegister(m.Migrations)
	reg.MustRegister(m.Generations)
	reg.MustRegister(m.ActiveSessions)
	reg.MustRegister(m.SessionEvictions)
	reg.MustRegister(m.RequestDuration)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordToggle counts one flag change.
func (m *Metrics) RecordToggle(kind string, completed bool) {
	direction := "uncompleted"
	if completed {
		direction = "completed"
	}
	m.TaskToggles.WithLabelValues(kind, direction).Inc()
}

// RecordXP adds awarded XP.
func (m *Metrics) RecordXP(amount int) {
	if amount > 0 {
		m.XPAwarded.Add(float64(amount))
	}
}

// RecordPersistenceError increments the write failure counter.
func (m *Metrics) RecordPersistenceError(operation string) {
	m.PersistenceErrors.WithLabelValues(operation).Inc()
}

// RecordMigration counts how a library domain was resolved on load.
func (m *Metrics) RecordMigration(domain, source string) {
	m.Migrations.WithLabelValues(domain, source).Inc()
}

// RecordGeneration counts one generation attempt.
func (m *Metrics) RecordGeneration(kind, status string) {
	m.Generations.WithLabelValues(kind, status).Inc()
}

// ObserveRequest records request duration.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}
