package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gigbridge/gigbridge-backend/api/routes"
	"github.com/gigbridge/gigbridge-backend/internal/app"
	"github.com/gigbridge/gigbridge-backend/internal/bootstrap"
)

const (
	serviceName     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	proc, err := bootstrap.Start(serviceName, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
	ctx, stop := proc.SignalContext()
	defer stop()

	server, err := setup(ctx, proc)
	if err != nil {
		proc.Exit(ctx, "api setup failed", err)
	}
	ctx = proc.Logger.WithFields(ctx, map[string]any{
		"addr":              server.Addr,
		"gateway_mode":      proc.Config.Gateway.Mode,
		"settlement_budget": proc.Config.Settlement.Budget().String(),
	})
	proc.Logger.Info(ctx, "starting api server")

	if err := serve(ctx, server); err != nil {
		proc.Exit(ctx, "api server stopped unexpectedly", err)
	}
	proc.Logger.Info(ctx, "api server stopped")
	_ = proc.Close()
}

func setup(ctx context.Context, proc *bootstrap.Process) (*http.Server, error) {
	cfg, logg := proc.Config, proc.Logger

	dbClient, err := proc.OpenDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	redisClient, err := proc.OpenRedis(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	pubsubClient, err := proc.OpenPubSub(ctx)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	svcs, err := app.Build(ctx, cfg, logg, app.Deps{
		DB:         dbClient,
		Redis:      redisClient,
		PubSub:     pubsubClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return nil, fmt.Errorf("services: %w", err)
	}

	// Cloud Run injects PORT; it wins over the configured port.
	port := cfg.App.Port
	if injected := os.Getenv("PORT"); injected != "" {
		port = injected
	}
	return &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, prometheus.DefaultGatherer, routes.Services{
			Bookings:   svcs.Bookings,
			Settlement: svcs.Settlement,
			Wallet:     svcs.Wallet,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// serve blocks until the listener fails or ctx is cancelled, then drains
// in-flight requests.
func serve(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
