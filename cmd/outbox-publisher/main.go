package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gigbridge/gigbridge-backend/internal/bootstrap"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/registry"
)

const serviceName = "outbox-publisher"

func main() {
	proc, err := bootstrap.Start(serviceName, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
	ctx, stop := proc.SignalContext()
	defer stop()

	relay, err := setup(ctx, proc)
	if err != nil {
		proc.Exit(ctx, "outbox publisher setup failed", err)
	}
	proc.ServeMetrics(ctx, prometheus.DefaultGatherer)

	proc.Logger.Info(ctx, "starting outbox publisher")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Exit(ctx, "outbox publisher stopped unexpectedly", err)
	}
	proc.Logger.Info(ctx, "outbox publisher stopped")
	_ = proc.Close()
}

func setup(ctx context.Context, proc *bootstrap.Process) (*Relay, error) {
	dbClient, err := proc.OpenDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	pubsubClient, err := proc.OpenPubSub(ctx)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	events, err := registry.NewEventRegistry(proc.Config.PubSub)
	if err != nil {
		return nil, fmt.Errorf("event registry: %w", err)
	}
	return NewRelay(RelayParams{
		Config:     proc.Config,
		Logger:     proc.Logger,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   events,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
}
