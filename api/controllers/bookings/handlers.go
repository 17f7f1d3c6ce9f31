package bookings

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/api/middleware"
	"github.com/gigbridge/gigbridge-backend/api/responses"
	"github.com/gigbridge/gigbridge-backend/api/validators"
	internalbookings "github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

type bookingAction func(ctx context.Context, actor internalbookings.Actor, bookingID uuid.UUID) (*models.Booking, error)

// Get returns a booking the caller is party to.
func Get(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalbookings.Service) bookingAction { return svc.Get })
}

// Accept lets the worker take a requested booking.
func Accept(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalbookings.Service) bookingAction { return svc.Accept })
}

// Start marks the job as underway.
func Start(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalbookings.Service) bookingAction { return svc.Start })
}

func Cancel(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc, logg, func(svc internalbookings.Service) bookingAction { return svc.Cancel })
}

func transition(svc internalbookings.Service, logg *logger.Logger, pick func(internalbookings.Service) bookingAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		booking, err := pick(svc)(ctx, actor, bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

// RequestCompletion moves the booking to completion_pending and sends a code
// to the counterpart.
func RequestCompletion(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		result, err := svc.RequestCompletion(ctx, actor, bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCompletionResponse(result))
	}
}

// ReissueCompletionCode replaces the outstanding code.
func ReissueCompletionCode(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		result, err := svc.ReissueCompletionCode(ctx, actor, bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCompletionResponse(result))
	}
}

func ConfirmCompletion(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		var req confirmCompletionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		booking, err := svc.ConfirmCompletion(ctx, actor, bookingID, strings.TrimSpace(req.Code))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

// InitiateSettlement creates or returns the open payment order for the booking.
func InitiateSettlement(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		result, err := svc.InitiateSettlement(ctx, actor, bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettlementResponse(result))
	}
}

func Dispute(svc internalbookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, actor, bookingID, ok := prepare(w, r, svc, logg)
		if !ok {
			return
		}
		var req disputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		booking, err := svc.Dispute(ctx, actor, bookingID, validators.CleanText(req.Reason, 1000))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

func prepare(w http.ResponseWriter, r *http.Request, svc internalbookings.Service, logg *logger.Logger) (context.Context, internalbookings.Actor, uuid.UUID, bool) {
	ctx := r.Context()
	if svc == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bookings service unavailable"))
		return ctx, internalbookings.Actor{}, uuid.Nil, false
	}
	userID, role, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing principal"))
		return ctx, internalbookings.Actor{}, uuid.Nil, false
	}
	bookingID, err := parseBookingID(r)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return ctx, internalbookings.Actor{}, uuid.Nil, false
	}
	if logg != nil {
		ctx = logg.WithBookingID(ctx, bookingID.String())
	}
	return ctx, internalbookings.Actor{UserID: userID, Role: role}, bookingID, true
}

func parseBookingID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "bookingId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking id")
	}
	return id, nil
}
