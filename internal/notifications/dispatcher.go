package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier is the fire-and-forget notification boundary.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification addresses one booking party.
type Notification struct {
	RecipientID uuid.UUID
	Type        enums.NotificationType
	BookingID   uuid.UUID
	Payload     map[string]any
}

// Dispatcher writes notifications to the outbox in their own transaction so a
// failure can never roll back the booking or ledger change that triggered it.
type Dispatcher struct {
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

// NewDispatcher wires the outbox-backed notifier.
func NewDispatcher(tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (*Dispatcher, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{tx: tx, outbox: emitter, logg: logg}, nil
}

// Notify records the notification. Errors are logged and swallowed.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if n.RecipientID == uuid.Nil || !n.Type.IsValid() {
		d.logg.Warn(ctx, fmt.Sprintf("dropping malformed notification type=%q", n.Type))
		return
	}

	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   n.BookingID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
			Data: payloads.NotificationRequestedEvent{
				RecipientID: n.RecipientID,
				Type:        n.Type,
				BookingID:   n.BookingID,
				Payload:     n.Payload,
			},
		})
	})
	if err != nil {
		ctx = d.logg.WithFields(ctx, map[string]any{
			"booking_id":        n.BookingID.String(),
			"recipient_id":      n.RecipientID.String(),
			"notification_type": n.Type,
		})
		d.logg.Error(ctx, "notification dispatch failed", err)
	}
}

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(context.Context, Notification) {}
