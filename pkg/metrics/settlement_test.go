package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.IncCredit()
	m.IncDuplicateCredit()
	m.IncDuplicateCredit()
	m.IncSignatureRejected("callback")
	m.ObserveOutcome("poll", OutcomeSettled)
	m.ObserveGateway("fetch_order", 40*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	credits := findMetricFamily(mfs, "gigbridge_wallet_credits_total")
	require.NotNil(t, credits)
	assert.EqualValues(t, 1, credits.GetMetric()[0].GetCounter().GetValue())

	dups := findMetricFamily(mfs, "gigbridge_wallet_duplicate_credits_total")
	require.NotNil(t, dups)
	assert.EqualValues(t, 2, dups.GetMetric()[0].GetCounter().GetValue())

	rejected, err := fetchCounterValue(mfs, "gigbridge_gateway_signature_rejected_total", "source", "callback")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rejected)

	settled, err := fetchCounterValue(mfs, "gigbridge_settlement_outcomes_total", "outcome", OutcomeSettled)
	require.NoError(t, err)
	assert.EqualValues(t, 1, settled)

	latency, err := fetchHistogramSum(mfs, "gigbridge_gateway_request_duration_seconds", "operation", "fetch_order")
	require.NoError(t, err)
	assert.Greater(t, latency, float64(0))
}

func TestSettlementMetricsNilRegistererIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		m := NewSettlementMetrics(nil)
		m.IncCredit()
		m.IncAwaitTimeout()
		m.ObserveGateway("create_order", time.Millisecond)

		var nilMetrics *SettlementMetrics
		nilMetrics.IncDuplicateCredit()
	})
}

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.ObserveEvent("booking.state_changed", OutboxPublished)
	m.ObserveEvent("booking.state_changed", OutboxPublished)
	m.ObserveEvent("wallet.credited", OutboxParked)
	m.ObserveBatch(30 * time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	published, err := fetchCounterValue(mfs, "gigbridge_outbox_events_total", "outcome", OutboxPublished)
	require.NoError(t, err)
	assert.EqualValues(t, 2, published)

	parked, err := fetchCounterValue(mfs, "gigbridge_outbox_events_total", "event_type", "wallet.credited")
	require.NoError(t, err)
	assert.EqualValues(t, 1, parked)

	assert.NotPanics(t, func() {
		var nilMetrics *OutboxMetrics
		nilMetrics.ObserveEvent("x", OutboxRetried)
		NewOutboxMetrics(nil).ObserveBatch(time.Second)
	})
}
