package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("settlement-reconcile", 250*time.Millisecond, nil)
	m.ObserveRun("settlement-reconcile", 10*time.Millisecond, nil)
	m.ObserveRun("settlement-reconcile", time.Second, errors.New("gateway down"))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	ok, err := fetchCounterValue(mfs, "gigbridge_cron_job_runs_total", "result", ResultSuccess)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ok)

	failed, err := fetchCounterValue(mfs, "gigbridge_cron_job_runs_total", "result", ResultFailure)
	require.NoError(t, err)
	assert.EqualValues(t, 1, failed)

	sum, err := fetchHistogramSum(mfs, "gigbridge_cron_job_duration_seconds", "job", "settlement-reconcile")
	require.NoError(t, err)
	assert.InDelta(t, 1.26, sum, 0.001)

	last := findMetricFamily(mfs, "gigbridge_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), float64(0))
}

func TestCronJobMetricsFailureLeavesLastSuccessUnset(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("", time.Millisecond, errors.New("boom"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Nil(t, findMetricFamily(mfs, "gigbridge_cron_job_last_success_timestamp_seconds"))

	got, err := fetchCounterValue(mfs, "gigbridge_cron_job_runs_total", "job", "unknown")
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		var m *CronJobMetrics
		m.ObserveRun("x", time.Second, nil)
		NewCronJobMetrics(nil).ObserveRun("x", time.Second, errors.New("boom"))
	})
}
