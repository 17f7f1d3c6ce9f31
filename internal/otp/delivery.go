package otp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

const deliveryPublishTimeout = 10 * time.Second

// Delivery is the message handed to the SMS/push collaborator.
type Delivery struct {
	RecipientID      uuid.UUID        `json:"recipient_id"`
	BookingID        uuid.UUID        `json:"booking_id"`
	Purpose          enums.OtpPurpose `json:"purpose"`
	Code             string           `json:"code"`
	ExpiresInSeconds int64            `json:"expires_in_seconds"`
}

// NewDelivery builds the delivery message for a freshly issued code.
func NewDelivery(issued *Issued) Delivery {
	return Delivery{
		RecipientID:      issued.Challenge.RecipientID,
		BookingID:        issued.Challenge.BookingID,
		Purpose:          issued.Challenge.Purpose,
		Code:             issued.Code,
		ExpiresInSeconds: int64(issued.ExpiresIn / time.Second),
	}
}

// Deliverer sends a plaintext code out of band.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// PubSubDeliverer publishes codes to the OTP delivery topic. Codes are never
// written to the outbox table.
type PubSubDeliverer struct {
	pub publisher
}

// NewPubSubDeliverer wraps a Pub/Sub publisher.
func NewPubSubDeliverer(p *gcppubsub.Publisher) (*PubSubDeliverer, error) {
	if p == nil {
		return nil, errors.New("otp delivery publisher required")
	}
	return &PubSubDeliverer{pub: gcpPublisher{p}}, nil
}

func (d *PubSubDeliverer) Deliver(ctx context.Context, msg Delivery) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, deliveryPublishTimeout)
	defer cancel()

	result := d.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"recipient_id": msg.RecipientID.String(),
			"booking_id":   msg.BookingID.String(),
			"purpose":      string(msg.Purpose),
		},
	})
	if result == nil {
		return errors.New("publish returned no result")
	}
	_, err = result.Get(publishCtx)
	return err
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

// LogDeliverer records that a code was produced without revealing it. Used when
// Pub/Sub is not configured in local environments.
type LogDeliverer struct {
	Logger *logger.Logger
}

func (d LogDeliverer) Deliver(ctx context.Context, msg Delivery) error {
	if d.Logger == nil {
		return nil
	}
	ctx = d.Logger.WithFields(ctx, map[string]any{
		"booking_id":         msg.BookingID.String(),
		"recipient_id":       msg.RecipientID.String(),
		"purpose":            msg.Purpose,
		"expires_in_seconds": msg.ExpiresInSeconds,
	})
	d.Logger.Info(ctx, "completion code issued without delivery channel")
	return nil
}
