package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

const (
	defaultBaseURL           = "https://api.razorpay.com/v1"
	defaultTimeout           = 10 * time.Second
	defaultRetryBase         = 200 * time.Millisecond
	defaultMaxRetries uint64 = 3
	responseReadLimit int64  = 1024
)

var (
	errKeyIDRequired     = errors.New("gateway key id is required")
	errKeySecretRequired = errors.New("gateway key secret is required")
)

// StatusError is returned for non-2xx gateway responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the response is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// LatencyObserver receives the duration of every gateway round trip.
type LatencyObserver interface {
	ObserveGateway(operation string, d time.Duration)
}

// RESTClient calls the gateway over HTTPS with basic auth.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	maxRetries uint64
	retryBase  time.Duration
	observer   LatencyObserver
}

// Option configures optional client behavior.
type Option func(*RESTClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *RESTClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *RESTClient) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRetry sets the retry ceiling and the first backoff step.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *RESTClient) {
		c.maxRetries = maxRetries
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithLatencyObserver reports call latency to o.
func WithLatencyObserver(o LatencyObserver) Option {
	return func(c *RESTClient) {
		c.observer = o
	}
}

// NewRESTClient builds a client from the gateway config.
func NewRESTClient(cfg config.GatewayConfig, opts ...Option) (*RESTClient, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &RESTClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	if cfg.BaseURL != "" {
		client.baseURL = cfg.BaseURL
	}
	if cfg.MaxRetries > 0 {
		client.maxRetries = cfg.MaxRetries
	}
	if cfg.RetryBase > 0 {
		client.retryBase = cfg.RetryBase
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// KeyID is the public key handed to the client-side checkout.
func (c *RESTClient) KeyID() string {
	return c.keyID
}

// CreateOrder registers a new order with the gateway.
func (c *RESTClient) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order currency is required")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create order request")
	}

	var order Order
	if err := c.do(ctx, "create_order", http.MethodPost, "orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchOrder reads the current order state.
func (c *RESTClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	var order Order
	if err := c.do(ctx, "fetch_order", http.MethodGet, "orders/"+url.PathEscape(trimmed), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *RESTClient) do(ctx context.Context, operation, method, path string, body []byte, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		started := time.Now()
		err := c.once(ctx, method, path, body, out)
		if c.observer != nil {
			c.observer.ObserveGateway(operation, time.Since(started))
		}
		if err == nil {
			return nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payment order not found at gateway")
	}
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("gateway rejected %s", operation))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("gateway %s failed", operation))
}

func (c *RESTClient) once(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func (c *RESTClient) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
