package usecase

import (
	"context"
	"log/slog"

	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/kafka"
	"github.com/pdh/booking/internal/saga/domain"
)

// HandleMessage adapts a consumed Kafka message into HandleEvent. Malformed
// payloads are logged and dropped; redelivering them can never succeed.
func (o *Orchestrator) HandleMessage(ctx context.Context, message *kafka.Message) error {
	event, err := domain.ParseEvent(message.Value)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidInput) {
			o.logger.Warn("malformed event dropped",
				slog.String("topic", message.Topic),
				slog.String("key", message.Key),
				slog.Any("error", err),
			)
			o.recordDropped(ctx, "malformed")
			return nil
		}
		return err
	}
	return o.HandleEvent(ctx, event)
}
