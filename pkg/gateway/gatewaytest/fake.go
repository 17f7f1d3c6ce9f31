// Package gatewaytest provides an in-memory payment gateway for tests and local runs.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway"
)

// Fake implements gateway.Client in memory. Orders start as "created" and move
// only when a test calls MarkPaid or SetStatus.
type Fake struct {
	Secret string

	mu      sync.Mutex
	orders  map[string]*gateway.Order
	seq     int
	failErr error

	CreateCalls atomic.Int32
	FetchCalls  atomic.Int32
}

// New returns a fake whose signatures are computed with secret.
func New(secret string) *Fake {
	return &Fake{
		Secret: secret,
		orders: map[string]*gateway.Order{},
	}
}

func (f *Fake) KeyID() string {
	return "rzp_test_fake"
}

func (f *Fake) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	f.CreateCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	f.seq++
	order := &gateway.Order{
		ID:          fmt.Sprintf("order_fake%04d", f.seq),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      gateway.StatusCreated,
	}
	f.orders[order.ID] = order
	cp := *order
	return &cp, nil
}

func (f *Fake) FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	f.FetchCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found at gateway")
	}
	cp := *order
	return &cp, nil
}

// MarkPaid flips the order to paid and returns a payment id with a valid checkout signature.
func (f *Fake) MarkPaid(orderID string) (paymentID, signature string) {
	f.SetStatus(orderID, gateway.StatusPaid)
	paymentID = "pay_" + orderID
	return paymentID, gateway.PaymentSignature(f.Secret, orderID, paymentID)
}

// SetStatus overrides the gateway-side status of an order.
func (f *Fake) SetStatus(orderID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order, ok := f.orders[orderID]; ok {
		order.Status = status
		if status == gateway.StatusPaid {
			order.AmountPaid = order.AmountMinor
		}
	}
}

// FailWith makes every subsequent call return err until cleared with nil.
func (f *Fake) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

var _ gateway.Client = (*Fake)(nil)
