package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gigbridge/gigbridge-backend/api/controllers"
	bookingcontrollers "github.com/gigbridge/gigbridge-backend/api/controllers/bookings"
	settlementcontrollers "github.com/gigbridge/gigbridge-backend/api/controllers/settlement"
	walletcontrollers "github.com/gigbridge/gigbridge-backend/api/controllers/wallet"
	webhookcontrollers "github.com/gigbridge/gigbridge-backend/api/controllers/webhooks"
	"github.com/gigbridge/gigbridge-backend/api/middleware"
	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/internal/wallet"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	pkgredis "github.com/gigbridge/gigbridge-backend/pkg/redis"
)

// maxAwaitAttempts keeps the HTTP await under typical proxy timeouts. The full
// poll ceiling is left to the reconcile job and settlectl.
const maxAwaitAttempts = 10

// RedisStore is the redis surface the HTTP layer needs. *redis.Client satisfies it.
type RedisStore interface {
	pkgredis.IdempotencyStore
	Ping(context.Context) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Services groups the domain services exposed over HTTP.
type Services struct {
	Bookings   bookings.Service
	Settlement settlement.Service
	Wallet     wallet.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	gatherer prometheus.Gatherer,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["db"] = dbP
	}
	if redisStore != nil {
		deps["redis"] = redisStore
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          interface {
			FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error)
		}
	)
	if redisStore != nil {
		idempotencyStore = redisStore
		limiter = redisStore
	}

	confirmPolicy := middleware.ConfirmRateLimitPolicy{
		Window: cfg.RateLimit.ConfirmWindow,
		Limit:  cfg.RateLimit.ConfirmLimit,
	}
	awaitPolicy := settlement.DefaultPolicy(cfg.Settlement)
	if awaitPolicy.MaxAttempts > maxAwaitAttempts {
		awaitPolicy.MaxAttempts = maxAwaitAttempts
	}
	currency := walletCurrency(cfg.Gateway.Currency)

	parties := []enums.ActorRole{enums.ActorRoleClient, enums.ActorRoleWorker, enums.ActorRoleAdmin}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.FeatureFlags.WebhookEnabled {
			r.Post("/webhooks/gateway", webhookcontrollers.GatewayWebhook(svcs.Settlement, logg))
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Route("/bookings/{bookingId}", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, parties...))
				r.Get("/", bookingcontrollers.Get(svcs.Bookings, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleWorker, enums.ActorRoleAdmin)).
					Post("/accept", bookingcontrollers.Accept(svcs.Bookings, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleWorker, enums.ActorRoleAdmin)).
					Post("/start", bookingcontrollers.Start(svcs.Bookings, logg))
				r.Post("/request-completion", bookingcontrollers.RequestCompletion(svcs.Bookings, logg))
				r.With(middleware.ConfirmRateLimit(confirmPolicy, limiter, logg)).
					Post("/confirm-completion", bookingcontrollers.ConfirmCompletion(svcs.Bookings, logg))
				r.Post("/reissue-code", bookingcontrollers.ReissueCompletionCode(svcs.Bookings, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleClient, enums.ActorRoleAdmin)).
					Post("/settlement", bookingcontrollers.InitiateSettlement(svcs.Bookings, logg))
				r.Post("/cancel", bookingcontrollers.Cancel(svcs.Bookings, logg))
				r.Post("/dispute", bookingcontrollers.Dispute(svcs.Bookings, logg))
			})

			r.Route("/settlement/{orderId}", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, parties...))
				r.Get("/status", settlementcontrollers.Status(svcs.Settlement, svcs.Bookings, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleClient, enums.ActorRoleAdmin)).
					Post("/confirm", settlementcontrollers.Confirm(svcs.Settlement, svcs.Bookings, logg))
				r.Post("/await", settlementcontrollers.Await(svcs.Settlement, svcs.Bookings, awaitPolicy, logg))
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleWorker))
				r.Get("/balance", walletcontrollers.Balance(svcs.Wallet, currency, logg))
				r.Get("/transactions", walletcontrollers.Transactions(svcs.Wallet, currency, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Get("/wallets/{ownerId}/verify", walletcontrollers.VerifySnapshots(svcs.Wallet, logg))
			})
		})
	})

	return r
}

func walletCurrency(raw string) enums.Currency {
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return enums.CurrencyINR
	}
	return currency
}
