package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBooking           OutboxAggregateType = "booking"
	AggregatePaymentOrder      OutboxAggregateType = "payment_order"
	AggregateWalletTransaction OutboxAggregateType = "wallet_transaction"
	AggregateNotification      OutboxAggregateType = "notification"
)

var aggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregatePaymentOrder,
	AggregateWalletTransaction,
	AggregateNotification,
}

func (a OutboxAggregateType) IsValid() bool { return oneOf(a, aggregateTypes) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, aggregateTypes, nil)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBookingStateChanged   OutboxEventType = "booking_state_changed"
	EventPaymentOrderCreated   OutboxEventType = "payment_order_created"
	EventPaymentOrderResolved  OutboxEventType = "payment_order_resolved"
	EventWalletCredited        OutboxEventType = "wallet_credited"
	EventNotificationRequested OutboxEventType = "notification_requested"
)

var eventTypes = []OutboxEventType{
	EventBookingStateChanged,
	EventPaymentOrderCreated,
	EventPaymentOrderResolved,
	EventWalletCredited,
	EventNotificationRequested,
}

func (e OutboxEventType) IsValid() bool { return oneOf(e, eventTypes) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, eventTypes, nil)
}
