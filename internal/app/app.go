// Package app builds the service graph shared by the api, cron-worker and
// settlectl binaries.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/internal/notifications"
	"github.com/gigbridge/gigbridge-backend/internal/otp"
	"github.com/gigbridge/gigbridge-backend/internal/payments"
	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/internal/wallet"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway/gatewaytest"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/idempotency"
	"github.com/gigbridge/gigbridge-backend/pkg/pubsub"
	"github.com/gigbridge/gigbridge-backend/pkg/redis"
)

// Deps are the infrastructure clients the binaries bootstrap. Redis and PubSub
// are optional: without Redis the webhook guard is off, without PubSub codes are
// logged instead of delivered.
type Deps struct {
	DB         *db.Client
	Redis      *redis.Client
	PubSub     *pubsub.Client
	Registerer prometheus.Registerer
	Gateway    gateway.Client
}

type Services struct {
	Bookings     bookings.Service
	OTP          otp.Service
	Payments     payments.Service
	PaymentsRepo payments.Repository
	Wallet       wallet.Service
	Settlement   settlement.Service
	Outbox       *outbox.Service
	OutboxRepo   *outbox.Repository
	Gateway      gateway.Client
}

// Build wires every domain service on top of deps.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, deps Deps) (*Services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database client required")
	}

	settlementMetrics := metrics.NewSettlementMetrics(deps.Registerer)

	gw := deps.Gateway
	if gw == nil {
		var err error
		gw, err = NewGateway(cfg.Gateway, settlementMetrics)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Gateway.IsFake() {
		logg.Warn(ctx, "payment gateway running in fake mode")
	}

	conn := deps.DB.DB()
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, logg)

	notifier, err := notifications.NewDispatcher(deps.DB, outboxSvc, logg)
	if err != nil {
		return nil, fmt.Errorf("notifications dispatcher: %w", err)
	}

	otpSvc, err := otp.NewService(otp.NewRepository(conn), deps.DB, cfg.OTP, logg)
	if err != nil {
		return nil, fmt.Errorf("otp service: %w", err)
	}

	paymentsRepo := payments.NewRepository(conn)
	paymentsSvc, err := payments.NewService(paymentsRepo, gw, cfg.Gateway, logg)
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	walletSvc, err := wallet.NewService(wallet.NewRepository(conn), deps.DB)
	if err != nil {
		return nil, fmt.Errorf("wallet service: %w", err)
	}

	var deliverer otp.Deliverer = otp.LogDeliverer{Logger: logg}
	if deps.PubSub != nil {
		pubsubDeliverer, err := otp.NewPubSubDeliverer(deps.PubSub.OTPDeliveryPublisher())
		if err != nil {
			return nil, fmt.Errorf("otp deliverer: %w", err)
		}
		deliverer = pubsubDeliverer
	}

	bookingsSvc, err := bookings.NewService(
		bookings.NewRepository(conn),
		deps.DB,
		otpSvc,
		paymentsSvc,
		outboxSvc,
		notifier,
		deliverer,
		logg,
		bookings.WithConflictRetries(cfg.Settlement.MaxConflictRetry),
	)
	if err != nil {
		return nil, fmt.Errorf("bookings service: %w", err)
	}

	opts := []settlement.Option{settlement.WithMetrics(settlementMetrics)}
	if deps.Redis != nil {
		guard, err := idempotency.NewManager(deps.Redis, cfg.Eventing.WebhookIdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("webhook guard: %w", err)
		}
		opts = append(opts, settlement.WithWebhookGuard(guard))
	}

	settlementSvc, err := settlement.NewService(
		deps.DB,
		bookingsSvc,
		paymentsSvc,
		paymentsRepo,
		walletSvc,
		outboxSvc,
		notifier,
		cfg.Settlement,
		logg,
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("settlement service: %w", err)
	}

	return &Services{
		Bookings:     bookingsSvc,
		OTP:          otpSvc,
		Payments:     paymentsSvc,
		PaymentsRepo: paymentsRepo,
		Wallet:       walletSvc,
		Settlement:   settlementSvc,
		Outbox:       outboxSvc,
		OutboxRepo:   outboxRepo,
		Gateway:      gw,
	}, nil
}

// NewGateway returns the REST client, or the in-memory fake when the gateway
// mode is "fake".
func NewGateway(cfg config.GatewayConfig, observer gateway.LatencyObserver) (gateway.Client, error) {
	if cfg.IsFake() {
		return gatewaytest.New(cfg.KeySecret), nil
	}
	client, err := gateway.NewRESTClient(cfg, gateway.WithLatencyObserver(observer))
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}
	return client, nil
}
