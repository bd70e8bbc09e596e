package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("report:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("report:warmup").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, reg, "accounting_jobs_total", map[string]string{"job": "report:warmup", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, reg, "accounting_jobs_total", map[string]string{"job": "report:warmup", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, reg, "accounting_jobs_failures_total", map[string]string{"job": "report:warmup"}))
}

func TestAddProcessedIgnoresNonPositive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddProcessed("idempotency:cleanup", 0)
	m.AddProcessed("idempotency:cleanup", 4)

	require.Equal(t, 4.0, counterValue(t, reg, "accounting_jobs_processed_items_total", map[string]string{"job": "idempotency:cleanup"}))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddProcessed("x", 3)
}
