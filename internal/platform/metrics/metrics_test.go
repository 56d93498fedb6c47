package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission(OutcomeRegistered, time.Second)
		m.IncServiceError(4)
		m.IncServiceWarning(1)
		m.SetCircuitOpen("eet", true)
		m.SetQueueDepth(3)
	})
}

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveSubmission(OutcomeRegistered, 120*time.Millisecond)
	m.ObserveSubmission(OutcomeRegistered, 80*time.Millisecond)
	m.IncServiceError(-1)
	m.SetCircuitOpen("eet", true)
	m.SetQueueDepth(2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues(OutcomeRegistered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ServiceErrors.WithLabelValues("-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitOpen.WithLabelValues("eet")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))
}
