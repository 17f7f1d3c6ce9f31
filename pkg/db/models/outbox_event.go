package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// OutboxEvent is one row of outbox_events. Rows are written in the same
// transaction as the state change they describe and published afterwards.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:aggregate_type_enum;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null;index"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:event_type_enum;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`

	AttemptCount int        `gorm:"column:attempt_count;not null;default:0"`
	LastError    *string    `gorm:"column:last_error"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

// Published reports whether the publisher has delivered the row.
func (e OutboxEvent) Published() bool { return e.PublishedAt != nil }
