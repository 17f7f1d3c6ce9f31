package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

func newTestClient(t *testing.T, baseURL string) *RESTClient {
	t.Helper()
	client, err := NewRESTClient(config.GatewayConfig{
		BaseURL:   baseURL,
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
	}, WithRetry(2, time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateOrderSendsBasicAuthAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "rzp_test_secret" {
			t.Errorf("basic auth missing or wrong")
		}
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal body: %v", err)
		}
		if payload["amount"] != float64(1500) || payload["currency"] != "INR" || payload["receipt"] != "bk_1" {
			t.Errorf("unexpected payload %v", payload)
		}
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":1500,"currency":"INR","receipt":"bk_1","status":"created"}`))
	}))
	defer srv.Close()

	order, err := newTestClient(t, srv.URL+"/v1").CreateOrder(context.Background(), CreateOrderRequest{
		AmountMinor: 1500,
		Currency:    "INR",
		Receipt:     "bk_1",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "order_abc" || order.Status != StatusCreated {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestFetchOrderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":1500,"amount_paid":1500,"currency":"INR","status":"paid"}`))
	}))
	defer srv.Close()

	order, err := newTestClient(t, srv.URL).FetchOrder(context.Background(), "order_abc")
	if err != nil {
		t.Fatalf("fetch order: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if MapStatus(order.Status) != enums.PaymentOrderStatusPaid {
		t.Fatalf("expected paid, got %q", order.Status)
	}
}

func TestFetchOrderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":"BAD_REQUEST_ERROR"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchOrder(context.Background(), "order_missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestRetriesExhaustedIsDependencyError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchOrder(context.Background(), "order_abc")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", calls.Load())
	}
}

func TestNewRESTClientRequiresKeys(t *testing.T) {
	if _, err := NewRESTClient(config.GatewayConfig{KeySecret: "s"}); err == nil {
		t.Fatal("expected missing key id error")
	}
	if _, err := NewRESTClient(config.GatewayConfig{KeyID: "k"}); err == nil {
		t.Fatal("expected missing key secret error")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[string]enums.PaymentOrderStatus{
		"created":   enums.PaymentOrderStatusCreated,
		"attempted": enums.PaymentOrderStatusCreated,
		" PAID ":    enums.PaymentOrderStatusPaid,
		"failed":    enums.PaymentOrderStatusFailed,
		"expired":   enums.PaymentOrderStatusExpired,
		"":          enums.PaymentOrderStatusCreated,
	}
	for raw, want := range cases {
		if got := MapStatus(raw); got != want {
			t.Fatalf("MapStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCreateOrderValidatesInput(t *testing.T) {
	client := newTestClient(t, "http://gateway.invalid")
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{AmountMinor: 0, Currency: "INR"})
	if err == nil || !strings.Contains(err.Error(), "positive") {
		t.Fatalf("expected amount validation error, got %v", err)
	}
}
