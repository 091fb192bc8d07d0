package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"

	apperrors "github.com/pdh/booking/internal/errors"
)

// HandlerFunc processes a single consumed message. Returning an error leaves
// the offset uncommitted so the broker redelivers the message; handlers must
// swallow permanent failures (malformed payloads, exhausted attempts) by
// returning nil, or the partition stalls on them.
type HandlerFunc func(ctx context.Context, message *Message) error

// Consumer wraps a sarama consumer group and pumps messages into a
// HandlerFunc until the context is cancelled.
type Consumer struct {
	group   sarama.ConsumerGroup
	groupID string
	logger  *slog.Logger
}

// NewConsumer creates a new Consumer joined to the given consumer group.
func NewConsumer(brokers []string, groupID, clientID string, logger *slog.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, apperrors.Wrap(err, "create kafka consumer group")
	}

	return &Consumer{
		group:   group,
		groupID: groupID,
		logger:  logger,
	}, nil
}

// Consume joins the group for the given topics and blocks until the context
// is cancelled. Rebalances restart the inner loop transparently.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler HandlerFunc) error {
	groupHandler := &consumerGroupHandler{
		handler: handler,
		logger:  c.logger,
	}

	for {
		if err := c.group.Consume(ctx, topics, groupHandler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			// Handler errors surface here; rejoin so uncommitted
			// messages are delivered again.
			c.logger.Error("consumer session ended with error",
				slog.String("group", c.groupID),
				slog.Any("error", err),
			)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler HandlerFunc
	logger  *slog.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			headers := make(map[string]string, len(message.Headers))
			for _, header := range message.Headers {
				headers[string(header.Key)] = string(header.Value)
			}

			msg := &Message{
				Topic:     message.Topic,
				Key:       string(message.Key),
				Value:     message.Value,
				Headers:   headers,
				Timestamp: message.Timestamp,
			}

			if err := h.handler(session.Context(), msg); err != nil {
				// Leave the offset uncommitted so the message is
				// redelivered after the session restarts.
				h.logger.Error("message handler failed",
					slog.String("topic", message.Topic),
					slog.Int64("partition", int64(message.Partition)),
					slog.Int64("offset", message.Offset),
					slog.Any("error", err),
				)
				return err
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
