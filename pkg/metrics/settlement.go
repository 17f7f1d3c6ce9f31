package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement outcome labels.
const (
	OutcomeSettled  = "settled"
	OutcomePending  = "pending"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

// SettlementMetrics tracks ledger credits and gateway round trips.
type SettlementMetrics struct {
	credits           prometheus.Counter
	duplicateCredits  prometheus.Counter
	signatureRejected *prometheus.CounterVec
	settleOutcomes    *prometheus.CounterVec
	awaitTimeouts     prometheus.Counter
	gatewayLatency    *prometheus.HistogramVec
}

// NewSettlementMetrics registers the settlement metrics on reg. A nil
// registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gigbridge_wallet_credits_total",
			Help: "Wallet credits posted to the ledger.",
		}),
		duplicateCredits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gigbridge_wallet_duplicate_credits_total",
			Help: "Credit attempts absorbed by the order idempotency key.",
		}),
		signatureRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gigbridge_gateway_signature_rejected_total",
			Help: "Gateway callbacks or webhooks whose signature did not verify.",
		}, []string{"source"}),
		settleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gigbridge_settlement_outcomes_total",
			Help: "Settlement attempts by outcome.",
		}, []string{"path", "outcome"}),
		awaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gigbridge_settlement_await_timeouts_total",
			Help: "Settlement waits that exhausted the poll budget.",
		}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gigbridge_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.credits, m.duplicateCredits, m.signatureRejected, m.settleOutcomes, m.awaitTimeouts, m.gatewayLatency)
	return m
}

func (m *SettlementMetrics) IncCredit() {
	if m == nil || m.credits == nil {
		return
	}
	m.credits.Inc()
}

func (m *SettlementMetrics) IncDuplicateCredit() {
	if m == nil || m.duplicateCredits == nil {
		return
	}
	m.duplicateCredits.Inc()
}

// IncSignatureRejected counts a failed verification for source ("callback" or "webhook").
func (m *SettlementMetrics) IncSignatureRejected(source string) {
	if m == nil || m.signatureRejected == nil {
		return
	}
	m.signatureRejected.WithLabelValues(normalizeLabel(source)).Inc()
}

// ObserveOutcome counts a settlement attempt on path (confirm, poll, webhook, reconcile).
func (m *SettlementMetrics) ObserveOutcome(path, outcome string) {
	if m == nil || m.settleOutcomes == nil {
		return
	}
	m.settleOutcomes.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

func (m *SettlementMetrics) IncAwaitTimeout() {
	if m == nil || m.awaitTimeouts == nil {
		return
	}
	m.awaitTimeouts.Inc()
}

// ObserveGateway records the latency of a gateway API call.
func (m *SettlementMetrics) ObserveGateway(operation string, d time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}
