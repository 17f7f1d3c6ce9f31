package settlement

import (
	"context"
	"encoding/json"
	"strings"

	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
)

// Gateway webhook events that carry a captured payment.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
)

// WebhookEvent is the subset of the gateway webhook body the reconciler reads.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhookEvent decodes a raw gateway webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook body")
	}
	if strings.TrimSpace(event.Event) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event type missing")
	}
	return &event, nil
}

func (e *WebhookEvent) settles() bool {
	return e.Event == EventPaymentCaptured || e.Event == EventOrderPaid
}

// SettleFromWebhook verifies the body signature and, for capture events, runs the
// same settle path as a signed client callback. Other events are acknowledged
// with a nil result. eventID defaults to the payment id when the gateway omits it.
func (s *service) SettleFromWebhook(ctx context.Context, body []byte, signature, eventID string) (*StatusResult, error) {
	if !s.payments.VerifyWebhook(ctx, body, signature) {
		s.metrics.IncSignatureRejected("webhook")
		s.metrics.ObserveOutcome(PathWebhook, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeSignatureRejected, "webhook signature could not be verified")
	}
	event, err := ParseWebhookEvent(body)
	if err != nil {
		return nil, err
	}
	if !event.settles() {
		s.logg.Info(s.logg.WithField(ctx, "event", event.Event), "ignoring gateway webhook event")
		return nil, nil
	}

	payment := event.Payload.Payment.Entity
	if payment.OrderID == "" || payment.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payment is missing order or payment id")
	}
	if strings.TrimSpace(eventID) == "" {
		eventID = payment.ID
	}
	ctx = s.logg.WithIdempotencyKey(ctx, eventID)

	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, webhookConsumer, eventID)
		if err != nil {
			s.logg.Error(ctx, "webhook idempotency check failed", err)
		} else if !claimed {
			s.logg.Info(ctx, "duplicate gateway webhook")
			return s.Status(ctx, payment.OrderID)
		}
	}

	order, err := s.payments.GetOrder(ctx, payment.OrderID)
	if err == nil {
		var result *StatusResult
		result, err = s.settleVerified(ctx, order, &payment.ID, nil, PathWebhook)
		if err == nil {
			return result, nil
		}
	}
	if s.guard != nil {
		if delErr := s.guard.Release(ctx, webhookConsumer, eventID); delErr != nil {
			s.logg.Error(ctx, "failed to clear webhook idempotency marker", delErr)
		}
	}
	return nil, err
}
