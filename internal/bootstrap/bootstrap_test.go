package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
)

func testProcess(out *bytes.Buffer) *Process {
	cfg := &config.Config{
		App:     config.AppConfig{Env: "test", LogLevel: "debug"},
		Service: config.ServiceConfig{Kind: "cron-worker"},
	}
	return New("cron-worker", cfg, out)
}

func TestCloseRunsNewestFirstAndJoinsErrors(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)

	var order []string
	p.OnClose("database", func() error { order = append(order, "database"); return nil })
	p.OnClose("redis", func() error { order = append(order, "redis"); return errors.New("redis gone") })
	p.OnClose("pubsub", func() error { order = append(order, "pubsub"); return errors.New("pubsub gone") })

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis gone")
	assert.Contains(t, err.Error(), "pubsub gone")
	assert.Equal(t, []string{"pubsub", "redis", "database"}, order)
	assert.Contains(t, out.String(), `"resource":"redis"`)

	assert.NoError(t, p.Close(), "closers run once")
}

func TestSignalContextCarriesProcessFields(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)

	ctx, stop := p.SignalContext()
	defer stop()
	p.Logger.Info(ctx, "hello")

	assert.Contains(t, out.String(), `"service_kind":"cron-worker"`)
	assert.Contains(t, out.String(), `"env":"test"`)
}

func TestMetricsHandlerServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "bootstrap_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := MetricsHandler(reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bootstrap_test_total 1")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServeMetricsDisabledWithoutAddr(t *testing.T) {
	var out bytes.Buffer
	p := testProcess(&out)
	p.ServeMetrics(context.Background(), prometheus.NewRegistry())
	assert.NotContains(t, out.String(), "serving metrics")
}
