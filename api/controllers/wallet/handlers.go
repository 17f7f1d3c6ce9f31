package wallet

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/api/middleware"
	"github.com/gigbridge/gigbridge-backend/api/responses"
	"github.com/gigbridge/gigbridge-backend/api/validators"
	internalwallet "github.com/gigbridge/gigbridge-backend/internal/wallet"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
)

type balanceResponse struct {
	OwnerID      uuid.UUID      `json:"owner_id"`
	BalanceMinor int64          `json:"balance_minor"`
	Balance      string         `json:"balance"`
	Currency     enums.Currency `json:"currency"`
}

type transactionResponse struct {
	ID                     uuid.UUID             `json:"id"`
	BookingID              uuid.UUID             `json:"booking_id"`
	OrderID                string                `json:"order_id"`
	Direction              enums.LedgerDirection `json:"direction"`
	AmountMinor            int64                 `json:"amount_minor"`
	Amount                 string                `json:"amount"`
	RunningBalanceSnapshot int64                 `json:"running_balance_snapshot"`
	CreatedAt              time.Time             `json:"created_at"`
}

// Balance returns the caller's wallet balance.
func Balance(svc internalwallet.Service, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := callerID(w, r, svc, logg)
		if !ok {
			return
		}
		balance, err := svc.Balance(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{
			OwnerID:      ownerID,
			BalanceMinor: balance,
			Balance:      money.Format(balance, currency),
			Currency:     currency,
		})
	}
}

// Transactions returns the caller's most recent ledger rows, newest first.
func Transactions(svc internalwallet.Service, currency enums.Currency, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := callerID(w, r, svc, logg)
		if !ok {
			return
		}
		limit, err := validators.QueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.History(r.Context(), ownerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]transactionResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, transactionResponse{
				ID:                     row.ID,
				BookingID:              row.BookingID,
				OrderID:                row.OrderIdempotencyKey,
				Direction:              row.Direction,
				AmountMinor:            row.AmountMinor,
				Amount:                 money.Format(row.AmountMinor, currency),
				RunningBalanceSnapshot: row.RunningBalanceSnapshot,
				CreatedAt:              row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// VerifySnapshots replays a wallet's ledger and reports snapshot drift. Admin only.
func VerifySnapshots(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		ownerID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "ownerId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid owner id"))
			return
		}
		report, err := svc.VerifySnapshots(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func callerID(w http.ResponseWriter, r *http.Request, svc internalwallet.Service, logg *logger.Logger) (uuid.UUID, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
		return uuid.Nil, false
	}
	userID, _, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing principal"))
		return uuid.Nil, false
	}
	return userID, true
}
