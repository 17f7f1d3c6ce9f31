package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/db/dbtest"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

func TestEmitStoresEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()
	bookingID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventBookingStateChanged,
			AggregateType: enums.AggregateBooking,
			AggregateID:   bookingID,
			Actor:         &ActorRef{UserID: uuid.New(), Role: "worker"},
			Data:          map[string]string{"to": "completion_pending"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(ctx, bookingID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	require.Equal(t, SchemaVersion, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.False(t, envelope.OccurredAt.IsZero())
	require.Equal(t, "worker", envelope.Actor.Role)
	require.JSONEq(t, `{"to":"completion_pending"}`, string(envelope.Data))
	require.False(t, rows[0].Published())
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()
	bookingID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, DomainEvent{
			EventType:     enums.EventBookingStateChanged,
			AggregateType: enums.AggregateBooking,
			AggregateID:   bookingID,
			Data:          map[string]string{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	rows, err := repo.ListByAggregate(ctx, bookingID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEmitRejectsMissingTxAndUnknownTypes(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	event := DomainEvent{
		EventType:     enums.EventBookingStateChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	}
	require.ErrorIs(t, svc.Emit(context.Background(), nil, event), errNoTx)

	bad := event
	bad.EventType = "booking_deleted"
	require.Error(t, svc.Emit(context.Background(), conn, bad))

	unencodable := event
	unencodable.Data = func() {}
	require.Error(t, svc.Emit(context.Background(), conn, unencodable))
}

func TestDecodeEnvelopeRejectsEmptyData(t *testing.T) {
	_, err := DecodeEnvelope(json.RawMessage(`{"version":1,"event_id":"e1","data":null}`))
	require.ErrorIs(t, err, errEmptyData)

	_, err = DecodeEnvelope(json.RawMessage(`{"version":1`))
	require.Error(t, err)

	env, err := DecodeEnvelope(json.RawMessage(`{"version":2,"event_id":"e1","occurred_at":"2026-03-01T10:00:00Z","data":{"a":1}}`))
	require.NoError(t, err)
	require.Equal(t, 2, env.Version)
	require.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), env.OccurredAt)
}

func TestFetchMarkPublishedFailedAndTerminal(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventNotificationRequested,
				AggregateType: enums.AggregateNotification,
				AggregateID:   uuid.New(),
				Data:          map[string]int{"i": i},
			})
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(conn, rows[1].ID, errors.New("pubsub unavailable")))
	require.NoError(t, repo.MarkTerminalTx(conn, rows[2].ID, errors.New("bad payload"), 3))

	pending, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, rows[1].ID, pending[0].ID)
	require.Equal(t, 1, pending[0].AttemptCount)
	require.NotNil(t, pending[0].LastError)
	require.Equal(t, "pubsub unavailable", *pending[0].LastError)
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, maxErrorLen+10)
	for i := range long {
		long[i] = 'x'
	}
	require.Len(t, truncateError(errors.New(string(long))), maxErrorLen)
	require.Equal(t, "unknown error", truncateError(nil))
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	ctx := context.Background()
	bookingID := uuid.New()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(ctx, tx, DomainEvent{
				EventType:     enums.EventBookingStateChanged,
				AggregateType: enums.AggregateBooking,
				AggregateID:   bookingID,
				Data:          map[string]int{"i": i},
			})
		}))
	}
	rows, err := repo.ListByAggregate(ctx, bookingID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Minute), 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	rows, err = repo.ListByAggregate(ctx, bookingID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Nil(t, rows[0].PublishedAt)
}
