// Package cdc routes change-data-capture messages from the booking change
// log to operation-specific handlers.
package cdc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pdh/booking/internal/kafka"
)

// Operation is the kind of change a CDC envelope describes.
type Operation string

// Supported change operations. Anything else maps to OperationUnknown.
const (
	OperationCreate  Operation = "c"
	OperationUpdate  Operation = "u"
	OperationDelete  Operation = "d"
	OperationUnknown Operation = ""
)

// Envelope is a single change-log record. Payload carries the after-image
// for creates and updates and the before-image for deletes.
type Envelope struct {
	Key       string          `json:"key"`
	Operation Operation       `json:"op"`
	Payload   json.RawMessage `json:"payload"`
}

// Handler reacts to change-log records for one table.
type Handler interface {
	HandleCreate(ctx context.Context, envelope *Envelope) error
	HandleUpdate(ctx context.Context, envelope *Envelope) error
	HandleDelete(ctx context.Context, envelope *Envelope) error
}

// Consumer decodes change-log messages and dispatches them to a Handler.
// A failing record is logged and skipped so one poison message never stalls
// the stream.
type Consumer struct {
	handler Handler
	logger  *slog.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(handler Handler, logger *slog.Logger) *Consumer {
	return &Consumer{
		handler: handler,
		logger:  logger,
	}
}

// Handle processes one change-log message.
func (c *Consumer) Handle(ctx context.Context, message *kafka.Message) error {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		// A poison message can never succeed; skip it so the
		// partition keeps moving.
		c.logger.Warn("skipping malformed change-log message",
			slog.String("topic", message.Topic),
			slog.String("key", message.Key),
			slog.Any("error", err),
		)
		return nil
	}
	if envelope.Key == "" {
		envelope.Key = message.Key
	}

	var err error
	switch envelope.Operation {
	case OperationCreate:
		err = c.handler.HandleCreate(ctx, &envelope)
	case OperationUpdate:
		err = c.handler.HandleUpdate(ctx, &envelope)
	case OperationDelete:
		err = c.handler.HandleDelete(ctx, &envelope)
	default:
		c.logger.Warn("unknown change-log operation",
			slog.String("topic", message.Topic),
			slog.String("key", envelope.Key),
			slog.String("operation", string(envelope.Operation)),
		)
		return nil
	}

	if err != nil {
		c.logger.Error("change-log handler failed",
			slog.String("topic", message.Topic),
			slog.String("key", envelope.Key),
			slog.String("operation", string(envelope.Operation)),
			slog.Any("error", err),
		)
	}
	return err
}
