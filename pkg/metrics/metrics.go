// Package metrics exposes Prometheus collectors for guard decisions and executions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ekaya_guard"

// Guard trip reasons.
const (
	TripConfirmation = "confirmation_mismatch"
	TripSafetyLimit  = "safety_limit_exceeded"
)

// Metrics owns a private registry so tests and multiple servers never collide on the
// default one. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	verdicts          *prometheus.CounterVec
	injectionHits     *prometheus.CounterVec
	guardTrips        *prometheus.CounterVec
	statements        *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_verdicts_total",
			Help:      "Free-form query verdicts by rejection code (empty code means accepted).",
		}, []string{"code"}),
		injectionHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suspicious_values_total",
			Help:      "Bound values flagged by libinjection.",
		}, []string{"rejected"}),
		guardTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_trips_total",
			Help:      "Mutations stopped by a confirmation or row-count check.",
		}, []string{"operation", "reason"}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements sent to a database.",
		}, []string{"operation", "dialect", "success"}),
		statementDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Wall time of a database operation, connect to close.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "dialect"}),
	}

	m.registry.MustRegister(
		m.verdicts,
		m.injectionHits,
		m.guardTrips,
		m.statements,
		m.statementDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveVerdict counts one classifier verdict.
func (m *Metrics) ObserveVerdict(code string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(code).Inc()
}

// ObserveInjection counts one libinjection hit.
func (m *Metrics) ObserveInjection(rejected bool) {
	if m == nil {
		return
	}
	m.injectionHits.WithLabelValues(strconv.FormatBool(rejected)).Inc()
}

// ObserveGuardTrip counts one mutation stopped before execution.
func (m *Metrics) ObserveGuardTrip(operation, reason string) {
	if m == nil {
		return
	}
	m.guardTrips.WithLabelValues(operation, reason).Inc()
}

// ObserveOperation records the outcome and duration of a database operation.
func (m *Metrics) ObserveOperation(operation, dialect string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(operation, dialect, strconv.FormatBool(err == nil)).Inc()
	m.statementDuration.WithLabelValues(operation, dialect).Observe(elapsed.Seconds())
}
