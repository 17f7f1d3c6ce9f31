package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gigbridge/gigbridge-backend/internal/app"
	"github.com/gigbridge/gigbridge-backend/internal/bootstrap"
	"github.com/gigbridge/gigbridge-backend/internal/cron"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
)

const serviceName = "cron-worker"

func main() {
	proc, err := bootstrap.Start(serviceName, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
	ctx, stop := proc.SignalContext()
	defer stop()

	service, err := setup(ctx, proc)
	if err != nil {
		proc.Exit(ctx, "cron worker setup failed", err)
	}
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)

	proc.Logger.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "cron worker stopped unexpectedly", err)
	}
	proc.Logger.Info(ctx, "cron worker stopped")
	_ = proc.Close()
}

// setup wires the reconciler without Pub/Sub; settlement notifications leave
// through the outbox.
func setup(ctx context.Context, proc *bootstrap.Process) (*cron.Service, error) {
	cfg, logg := proc.Config, proc.Logger

	dbClient, err := proc.OpenDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	redisClient, err := proc.OpenRedis(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	svcs, err := app.Build(ctx, cfg, logg, app.Deps{
		DB:         dbClient,
		Redis:      redisClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}

	registry, err := buildRegistry(cfg, logg, svcs)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, svcs *app.Services) (*cron.Registry, error) {
	reconcile, err := cron.NewSettlementReconcileJob(logg, svcs.Settlement)
	if err != nil {
		return nil, err
	}
	purge, err := cron.NewOTPPurgeJob(logg, svcs.OTP, cfg.OTP.Retention)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(logg, svcs.OutboxRepo, cfg.Cron.OutboxRetention)
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(reconcile, purge, retention)
}

// lockName scopes the singleton lock per environment so staging and prod
// sharing a Redis never block each other.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return serviceName + ":" + env
}
