package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gigbridge/gigbridge-backend/api/responses"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	pkgredis "github.com/gigbridge/gigbridge-backend/pkg/redis"
)

type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ConfirmRateLimitPolicy bounds completion code submissions per booking and user.
// The per-challenge attempt counter still applies; this stops guessing across
// reissued codes.
type ConfirmRateLimitPolicy struct {
	Window time.Duration
	Limit  int
}

func (p ConfirmRateLimitPolicy) enabled() bool {
	return p.Window > 0 && p.Limit > 0
}

// ConfirmRateLimit throttles POST /bookings/{bookingId}/confirm-completion.
// It must run after Auth.
func ConfirmRateLimit(policy ConfirmRateLimitPolicy, store fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			bookingID := strings.TrimSpace(chi.URLParam(r, "bookingId"))
			scope := pkgredis.ConfirmAttemptScope(bookingID, userIDFromContext(ctx))

			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.Limit), policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(logg.WithBookingID(ctx, bookingID), map[string]any{
						"attempts":       count,
						"limit":          policy.Limit,
						"window_seconds": int(policy.Window.Seconds()),
					})
					logg.Warn(logCtx, "completion.confirm.rate_limited")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many completion code attempts"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
