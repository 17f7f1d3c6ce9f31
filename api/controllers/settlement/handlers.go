package settlement

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gigbridge/gigbridge-backend/api/middleware"
	"github.com/gigbridge/gigbridge-backend/api/responses"
	"github.com/gigbridge/gigbridge-backend/api/validators"
	internalbookings "github.com/gigbridge/gigbridge-backend/internal/bookings"
	internalsettlement "github.com/gigbridge/gigbridge-backend/internal/settlement"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
)

type confirmRequest struct {
	PaymentID string `json:"payment_id" validate:"required,max=64"`
	Signature string `json:"signature" validate:"required,hexadecimal,max=128"`
}

// StatusResponse is the public settlement state of a payment order.
type StatusResponse struct {
	*internalsettlement.StatusResult
	Amount string `json:"amount"`
}

func toStatusResponse(result *internalsettlement.StatusResult) StatusResponse {
	return StatusResponse{
		StatusResult: result,
		Amount:       money.Format(result.AmountMinor, result.Currency),
	}
}

// Status returns the stored settlement state. With ?refresh=true the gateway is
// asked once before answering.
func Status(svc internalsettlement.Service, bookings internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, orderID, ok := authorize(w, r, svc, bookings, logg)
		if !ok {
			return
		}
		refresh, err := validators.QueryBool(r, "refresh")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var result *internalsettlement.StatusResult
		if refresh {
			result, err = svc.PollStatus(ctx, orderID)
		} else {
			result, err = svc.Status(ctx, orderID)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatusResponse(result))
	}
}

// Confirm verifies the checkout callback and settles the booking.
func Confirm(svc internalsettlement.Service, bookings internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, orderID, ok := authorize(w, r, svc, bookings, logg)
		if !ok {
			return
		}
		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.ConfirmAndSettle(ctx, orderID, strings.TrimSpace(req.PaymentID), strings.TrimSpace(req.Signature))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatusResponse(result))
	}
}

// Await polls the gateway until the order is terminal or policy runs out. Running
// out answers 202 with the last observed state; nothing is failed.
func Await(svc internalsettlement.Service, bookings internalbookings.Service, policy internalsettlement.Policy, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, orderID, ok := authorize(w, r, svc, bookings, logg)
		if !ok {
			return
		}
		result, err := svc.AwaitSettlement(ctx, orderID, policy)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeReconciliationTimeout) && result != nil {
				responses.WriteSuccessStatus(w, http.StatusAccepted, toStatusResponse(result))
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toStatusResponse(result))
	}
}

// authorize resolves the order's booking and checks the caller is a party to it.
// Strangers see NOT_FOUND.
func authorize(w http.ResponseWriter, r *http.Request, svc internalsettlement.Service, bookings internalbookings.Service, logg *logger.Logger) (context.Context, string, bool) {
	ctx := r.Context()
	if svc == nil || bookings == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
		return ctx, "", false
	}
	userID, role, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing principal"))
		return ctx, "", false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
		return ctx, "", false
	}
	if logg != nil {
		ctx = logg.WithOrderID(ctx, orderID)
	}

	current, err := svc.Status(ctx, orderID)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return ctx, "", false
	}
	if _, err := bookings.Get(ctx, internalbookings.Actor{UserID: userID, Role: role}, current.BookingID); err != nil {
		responses.WriteError(ctx, logg, w, err)
		return ctx, "", false
	}
	if logg != nil {
		ctx = logg.WithBookingID(ctx, current.BookingID.String())
	}
	return ctx, orderID, true
}
