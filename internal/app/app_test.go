package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/db/dbtest"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway/gatewaytest"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{
			Mode:          config.GatewayModeFake,
			KeyID:         "rzp_test",
			KeySecret:     "secret",
			WebhookSecret: "whsec",
			Currency:      "INR",
		},
		OTP:        config.OTPConfig{TTL: 15 * time.Minute, MaxAttempts: 5, Pepper: "pepper"},
		Settlement: config.SettlementConfig{PollInterval: time.Millisecond, MaxPollAttempts: 3, ReconcileBatch: 10, MaxConflictRetry: 5},
	}
}

func TestNewGatewayHonoursFakeMode(t *testing.T) {
	gw, err := NewGateway(testConfig().Gateway, nil)
	require.NoError(t, err)
	_, ok := gw.(*gatewaytest.Fake)
	assert.True(t, ok)

	live := testConfig().Gateway
	live.Mode = "live"
	gw, err = NewGateway(live, nil)
	require.NoError(t, err)
	_, ok = gw.(*gateway.RESTClient)
	assert.True(t, ok)
}

func TestBuildWiresBookingLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	fake := gatewaytest.New(cfg.Gateway.KeySecret)
	logg := logger.New(logger.Options{ServiceName: "app-test", Output: io.Discard})

	svcs, err := Build(ctx, cfg, logg, Deps{
		DB:         db.NewFromConn(dbtest.Open(t)),
		Registerer: prometheus.NewRegistry(),
		Gateway:    fake,
	})
	require.NoError(t, err)

	clientID, workerID := uuid.New(), uuid.New()
	booking, err := svcs.Bookings.Create(ctx, bookings.CreateInput{
		ClientID:        clientID,
		WorkerID:        workerID,
		ServiceCategory: "cleaning",
		ScheduledAt:     time.Now().Add(time.Hour),
		AmountDueMinor:  4200,
		Currency:        enums.CurrencyINR,
	})
	require.NoError(t, err)

	worker := bookings.Actor{UserID: workerID, Role: enums.ActorRoleWorker}
	client := bookings.Actor{UserID: clientID, Role: enums.ActorRoleClient}
	_, err = svcs.Bookings.Accept(ctx, worker, booking.ID)
	require.NoError(t, err)
	_, err = svcs.Bookings.Start(ctx, worker, booking.ID)
	require.NoError(t, err)

	current, err := svcs.Bookings.Get(ctx, client, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusInProgress, current.Status)

	balance, err := svcs.Wallet.Balance(ctx, workerID)
	require.NoError(t, err)
	assert.Zero(t, balance)
}
