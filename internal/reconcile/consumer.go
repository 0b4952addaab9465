// Package reconcile consumes external booking confirmations and applies them
// to the ledger. Confirmations arrive on a Kafka topic keyed by booking ID.
package reconcile

import (
	"context"
	"errors"

	bookingservice "medsched/internal/bookings/service"
	"medsched/pkg/config"
	apperrors "medsched/pkg/errors"
	"medsched/pkg/kafka"
	kafka_config "medsched/pkg/kafka/config"
	kafka_middleware "medsched/pkg/kafka/middleware"
)

type Confirmation struct {
	BookingID   string `json:"booking_id"`
	ExternalRef string `json:"external_ref"`
}

// NewHandler builds the message handler applying one confirmation. Bad
// payloads and unknown bookings fail permanently so they route to the DLQ
// instead of retrying forever; persistence failures are transient.
func NewHandler(bookings bookingservice.BookingService, cfg *config.Config) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var c Confirmation
		if err := msg.DecodeValue(&c); err != nil {
			return kafka.NewPermanentError("undecodable confirmation payload", err)
		}
		if c.BookingID == "" || c.ExternalRef == "" {
			return kafka.NewPermanentError("confirmation missing booking_id or external_ref", kafka.ErrInvalidMessage)
		}

		_, err := bookings.Confirm(ctx, c.BookingID, c.ExternalRef)
		if err == nil {
			cfg.Log.Info("Booking confirmation reconciled",
				"booking_id", c.BookingID,
				"external_ref", c.ExternalRef,
				"event_id", msg.GetEventID(),
			)
			return nil
		}

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case apperrors.CodeNotFound, apperrors.CodeConflict, apperrors.CodeInvalidInput:
				return kafka.NewPermanentError("confirmation rejected", err)
			case apperrors.CodePersistence:
				return kafka.NewTransientError("confirmation could not be persisted", err)
			}
		}
		return err
	}
}

// NewConsumer wires the confirmation topic to the handler with the standard
// logging and metrics middleware.
func NewConsumer(cfg *config.Config, bookings bookingservice.BookingService) (*kafka.Consumer, error) {
	kcfg := kafka_config.Load()

	consumer, err := kafka.NewConsumer(
		kcfg,
		cfg.KafkaReconcileTopic,
		cfg.KafkaReconcileGroup,
		cfg.KafkaReconcileTopic+".dlq",
		NewHandler(bookings, cfg),
	)
	if err != nil {
		return nil, err
	}

	if kcfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware())
	}
	return consumer, nil
}
