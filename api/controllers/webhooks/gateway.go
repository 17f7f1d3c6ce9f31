package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gigbridge/gigbridge-backend/api/responses"
	internalsettlement "github.com/gigbridge/gigbridge-backend/internal/settlement"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

const (
	SignatureHeader = "X-Gateway-Signature"
	EventIDHeader   = "X-Gateway-Event-Id"

	maxWebhookBody = 1 << 20
)

type GatewayWebhookService interface {
	SettleFromWebhook(ctx context.Context, body []byte, signature, eventID string) (*internalsettlement.StatusResult, error)
}

// GatewayWebhook handles payment gateway deliveries. Signature verification and
// replay protection happen in the settlement service.
func GatewayWebhook(svc GatewayWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}

		result, err := svc.SettleFromWebhook(ctx, payload, signature, strings.TrimSpace(r.Header.Get(EventIDHeader)))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result == nil {
			responses.WriteSuccess(w, map[string]string{"status": "ignored"})
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status":   "processed",
			"order_id": result.OrderID,
			"settled":  result.Settled,
		})
	}
}
