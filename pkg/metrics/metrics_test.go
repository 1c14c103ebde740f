package metrics_test

import (
	"testing"

	"github.com/dukex/contentflow/pkg/metrics"
	"github.com/dukex/contentflow/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveTransition(models.EventICPCompleted, models.OutcomeApplied, 0.01)
	m.ObserveTransition(models.EventICPCompleted, models.OutcomeConflict, 0.02)
	m.ObserveTransition(models.EventICPCompleted, models.OutcomeApplied, 0.01)
	m.AuditFailed()
	m.AuditDropped()
	m.SetStalled(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)

	count, err := testutil.GatherAndCount(reg, "contentflow_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per event and outcome")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveTransition(models.EventICPCompleted, models.OutcomeApplied, 0)
		m.AuditFailed()
		m.AuditDropped()
		m.SetStalled(1)
	})
}
