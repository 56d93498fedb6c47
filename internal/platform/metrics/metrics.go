package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for submissions.
const (
	OutcomeRegistered = "registered"
	OutcomeVerified   = "verified"
	OutcomeRejected   = "rejected"
	OutcomeFailed     = "failed"
)

// Metrics holds the Prometheus collectors of the submission engine.
// All methods are safe on a nil receiver.
type Metrics struct {
	Submissions        *prometheus.CounterVec
	SubmissionDuration prometheus.Histogram
	ServiceErrors      *prometheus.CounterVec
	ServiceWarnings    *prometheus.CounterVec
	CircuitOpen        *prometheus.GaugeVec
	QueueDepth         prometheus.Gauge
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eet_submissions_total",
			Help: "Receipt submissions by outcome",
		}, []string{"outcome"}),
		SubmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eet_submission_duration_seconds",
			Help:    "Round trip time of a receipt submission",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 2.5, 5, 10},
		}),
		ServiceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eet_service_errors_total",
			Help: "Errors reported by the tax authority by code",
		}, []string{"code"}),
		ServiceWarnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eet_service_warnings_total",
			Help: "Warnings reported by the tax authority by code",
		}, []string{"code"}),
		CircuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eet_transport_circuit_open",
			Help: "1 while the transport circuit breaker is open",
		}, []string{"breaker"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eet_queue_depth",
			Help: "Receipts waiting in the engine queue",
		}),
	}
}

func (m *Metrics) ObserveSubmission(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(outcome).Inc()
	m.SubmissionDuration.Observe(d.Seconds())
}

func (m *Metrics) IncServiceError(code int) {
	if m == nil {
		return
	}
	m.ServiceErrors.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) IncServiceWarning(code int) {
	if m == nil {
		return
	}
	m.ServiceWarnings.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetCircuitOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitOpen.WithLabelValues(name).Set(v)
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
