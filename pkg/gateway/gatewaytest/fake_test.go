package gatewaytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/pkg/gateway"
)

func TestFakeLifecycle(t *testing.T) {
	fake := New("secret")
	ctx := context.Background()

	order, err := fake.CreateOrder(ctx, gateway.CreateOrderRequest{AmountMinor: 1500, Currency: "INR", Receipt: "r"})
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCreated, order.Status)

	paymentID, sig := fake.MarkPaid(order.ID)
	assert.True(t, gateway.VerifyPaymentSignature("secret", order.ID, paymentID, sig))

	fetched, err := fake.FetchOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusPaid, fetched.Status)
	assert.Equal(t, int64(1500), fetched.AmountPaid)

	_, err = fake.FetchOrder(ctx, "order_missing")
	assert.Error(t, err)
}
