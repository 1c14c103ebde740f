// Package metrics defines the Prometheus collectors of the workflow state machine.
package metrics

import (
	"github.com/dukex/contentflow/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentflow"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions      *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	auditFailures    prometheus.Counter
	auditDropped     prometheus.Counter
	stalledWorkflows prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Workflow transition attempts by event and outcome.",
		}, []string{"event", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Latency of workflow transition attempts, storage calls included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Transition records that could not be written.",
		}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_dropped_total",
			Help:      "Transition records dropped because the audit queue was full.",
		}),
		stalledWorkflows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stalled_workflows",
			Help:      "Non-terminal workflows without a transition for longer than the stall threshold.",
		}),
	}

	reg.MustRegister(m.transitions, m.duration, m.auditFailures, m.auditDropped, m.stalledWorkflows)

	return m
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(event models.Event, outcome models.TransitionOutcome, seconds float64) {
	if m == nil {
		return
	}

	m.transitions.WithLabelValues(string(event), string(outcome)).Inc()
	m.duration.WithLabelValues(string(event)).Observe(seconds)
}

// AuditFailed counts a failed audit write.
func (m *Metrics) AuditFailed() {
	if m == nil {
		return
	}

	m.auditFailures.Inc()
}

// AuditDropped counts a record dropped by a full audit queue.
func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}

	m.auditDropped.Inc()
}

// SetStalled sets the stalled workflow gauge.
func (m *Metrics) SetStalled(count int) {
	if m == nil {
		return
	}

	m.stalledWorkflows.Set(float64(count))
}
