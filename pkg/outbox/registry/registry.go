// Package registry maps outbox rows to their Pub/Sub topic and typed payload.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/payloads"
)

// Descriptor says where an event type is published and how its data decodes.
type Descriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

func describe[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Descriptor {
	return Descriptor{
		EventType:     event,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// ResolvedEvent is a validated outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor Descriptor
	Envelope   outbox.Envelope
	// Payload is a pointer to the payloads type registered for the event.
	Payload any
}

// EventRegistry is immutable after NewEventRegistry.
type EventRegistry struct {
	byType map[enums.OutboxEventType]Descriptor
}

// NonRetryableError marks rows that can never publish as stored. The publisher
// parks them instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.DomainTopic == "":
		return nil, errors.New("domain topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}
	descriptors := []Descriptor{
		describe[payloads.BookingStateChangedEvent](enums.EventBookingStateChanged, enums.AggregateBooking, cfg.DomainTopic),
		describe[payloads.PaymentOrderCreatedEvent](enums.EventPaymentOrderCreated, enums.AggregatePaymentOrder, cfg.DomainTopic),
		describe[payloads.PaymentOrderResolvedEvent](enums.EventPaymentOrderResolved, enums.AggregatePaymentOrder, cfg.DomainTopic),
		describe[payloads.WalletCreditedEvent](enums.EventWalletCredited, enums.AggregateWalletTransaction, cfg.DomainTopic),
		describe[payloads.NotificationRequestedEvent](enums.EventNotificationRequested, enums.AggregateNotification, cfg.NotificationTopic),
	}
	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.byType[d.EventType] = d
	}
	return reg, nil
}

// Lookup returns the descriptor for an event type.
func (r *EventRegistry) Lookup(eventType enums.OutboxEventType) (Descriptor, bool) {
	d, ok := r.byType[eventType]
	return d, ok
}

// Resolve checks the row against its descriptor and decodes the payload. Every
// failure is non-retryable: the stored row will not change between attempts.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.Lookup(event.EventType)
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %q", event.EventType))
	}
	if event.AggregateType != desc.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("%s expects aggregate %s, row has %s", event.EventType, desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(errors.New("aggregate_id is empty"))
	}
	env, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s data: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
