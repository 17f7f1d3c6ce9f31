package enums

// PaymentOrderStatus maps to the payment_order_status enum in Postgres.
type PaymentOrderStatus string

const (
	PaymentOrderStatusCreated PaymentOrderStatus = "created"
	PaymentOrderStatusPaid    PaymentOrderStatus = "paid"
	PaymentOrderStatusFailed  PaymentOrderStatus = "failed"
	PaymentOrderStatusExpired PaymentOrderStatus = "expired"
)

var paymentOrderStatuses = []PaymentOrderStatus{
	PaymentOrderStatusCreated,
	PaymentOrderStatusPaid,
	PaymentOrderStatusFailed,
	PaymentOrderStatusExpired,
}

func (s PaymentOrderStatus) IsValid() bool { return oneOf(s, paymentOrderStatuses) }

// IsResolved reports whether the order reached an immutable status.
func (s PaymentOrderStatus) IsResolved() bool {
	return s.IsValid() && s != PaymentOrderStatusCreated
}

func ParsePaymentOrderStatus(value string) (PaymentOrderStatus, error) {
	return parse("payment order status", value, paymentOrderStatuses, nil)
}
