package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

// MetricsHandler serves /metrics from gatherer and a bare /healthz.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// ServeMetrics exposes gatherer on the configured metrics address until ctx
// ends. Workers without an HTTP surface use it so their job metrics are
// scrapeable; an empty address disables it.
func (p *Process) ServeMetrics(ctx context.Context, gatherer prometheus.Gatherer) {
	addr := p.Config.Service.MetricsAddr
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           MetricsHandler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error(ctx, "metrics listener stopped", err)
		}
	}()
	p.Logger.Info(p.Logger.WithField(ctx, "addr", addr), "serving metrics")
}
