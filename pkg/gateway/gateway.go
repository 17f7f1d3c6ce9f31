// Package gateway talks to the Razorpay-style payment gateway REST API.
package gateway

import (
	"context"
	"strings"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Gateway order states as reported by the API.
const (
	StatusCreated   = "created"
	StatusAttempted = "attempted"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Order is the gateway's view of a payment order.
type Order struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	AmountPaid  int64  `json:"amount_paid"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Notes       map[string]string `json:"notes,omitempty"`
}

// Client is the subset of gateway operations the settlement pipeline needs.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	KeyID() string
}

// MapStatus folds a gateway order status into the local payment order status.
// "attempted" means a payment was tried but not captured, so the order is still open.
func MapStatus(raw string) enums.PaymentOrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StatusPaid:
		return enums.PaymentOrderStatusPaid
	case StatusFailed:
		return enums.PaymentOrderStatusFailed
	case StatusExpired:
		return enums.PaymentOrderStatusExpired
	default:
		return enums.PaymentOrderStatusCreated
	}
}
