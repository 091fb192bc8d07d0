// Package usecase implements the listen-to-yourself consumer: the service
// reads its own published events back off the broker and verifies that the
// state they describe actually landed in the database.
package usecase

import (
	"context"
	"encoding/json"
	"log/slog"

	bookingDomain "github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/kafka"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

// Kind is the closed set of self-event kinds this service verifies.
type Kind int

const (
	KindUnknown Kind = iota
	KindBookingCreated
	KindBookingConfirmed
	KindBookingCancelled
	KindBookingFailed
)

// ParseKind resolves a wire event type to its kind.
func ParseKind(eventType string) Kind {
	switch eventType {
	case bookingDomain.EventTypeBookingCreated:
		return KindBookingCreated
	case bookingDomain.EventTypeBookingConfirmed:
		return KindBookingConfirmed
	case bookingDomain.EventTypeBookingCancelled:
		return KindBookingCancelled
	case bookingDomain.EventTypeBookingFailed:
		return KindBookingFailed
	}
	return KindUnknown
}

// DeduplicationStore tracks which events a consumer scope has processed and
// how many attempts each event has seen.
type DeduplicationStore interface {
	IsProcessed(ctx context.Context, consumerScope, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, consumerScope, eventID string) error
	AttemptCount(ctx context.Context, eventID string) (int, error)
	IncrementAttempts(ctx context.Context, eventID string) (int, error)
}

// BookingReader reads booking state for verification.
type BookingReader interface {
	GetByID(ctx context.Context, id string) (*bookingDomain.Booking, error)
}

// SagaReader reads saga state for verification.
type SagaReader interface {
	GetBySagaID(ctx context.Context, sagaID string) (*sagaDomain.Instance, error)
}

// OutboxMarker flags the originating outbox row as self-verified.
type OutboxMarker interface {
	MarkSelfProcessed(ctx context.Context, eventID string) error
}

// Metrics records self-event consumer outcomes.
type Metrics interface {
	RecordSelfEventVerified(ctx context.Context, eventType string)
	RecordSelfEventUnknown(ctx context.Context, eventType string)
	RecordSelfEventEscalated(ctx context.Context, eventType string)
}

// Config holds self-event consumer configuration.
type Config struct {
	ServiceName string
	MaxAttempts int
}

// Consumer verifies the service's own published events.
type Consumer struct {
	config      Config
	txManager   database.TxManager
	dedupStore  DeduplicationStore
	bookingRepo BookingReader
	sagaRepo    SagaReader
	outboxRepo  OutboxMarker
	metrics     Metrics
	logger      *slog.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(
	config Config,
	txManager database.TxManager,
	dedupStore DeduplicationStore,
	bookingRepo BookingReader,
	sagaRepo SagaReader,
	outboxRepo OutboxMarker,
	metrics Metrics,
	logger *slog.Logger,
) *Consumer {
	return &Consumer{
		config:      config,
		txManager:   txManager,
		dedupStore:  dedupStore,
		bookingRepo: bookingRepo,
		sagaRepo:    sagaRepo,
		outboxRepo:  outboxRepo,
		metrics:     metrics,
		logger:      logger,
	}
}

// envelope is the minimal wire shape the consumer needs from its own events.
type envelope struct {
	EventID     string `json:"eventId"`
	EventType   string `json:"eventType"`
	AggregateID string `json:"aggregateId"`
	BookingID   string `json:"bookingId"`
	SagaID      string `json:"sagaId"`
}

// HandleMessage adapts a consumed Kafka message into ProcessSelfEvent.
func (c *Consumer) HandleMessage(ctx context.Context, message *kafka.Message) error {
	var env envelope
	if err := json.Unmarshal(message.Value, &env); err != nil {
		c.logger.Warn("malformed self-event dropped",
			slog.String("topic", message.Topic),
			slog.String("key", message.Key),
			slog.Any("error", err),
		)
		return nil
	}
	if env.EventID == "" {
		env.EventID = message.Headers["event_id"]
	}
	if env.EventType == "" {
		env.EventType = message.Headers["event_type"]
	}
	return c.ProcessSelfEvent(ctx, &env)
}

// ProcessSelfEvent runs the verification pipeline for one self event:
// deduplication short-circuit, attempt cap, attempt increment, verifier
// dispatch, then marking both the dedup record and the outbox row.
func (c *Consumer) ProcessSelfEvent(ctx context.Context, env *envelope) error {
	if env.EventID == "" {
		c.logger.Error("self-event without event id dropped",
			slog.String("event_type", env.EventType),
		)
		return nil
	}

	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		processed, err := c.dedupStore.IsProcessed(ctx, c.config.ServiceName, env.EventID)
		if err != nil {
			return err
		}
		if processed {
			c.logger.Debug("self-event already processed, skipping",
				slog.String("event_id", env.EventID),
				slog.String("event_type", env.EventType),
			)
			return nil
		}

		attempts, err := c.dedupStore.AttemptCount(ctx, env.EventID)
		if err != nil {
			return err
		}
		if attempts >= c.config.MaxAttempts {
			c.escalate(ctx, env, attempts)
			return nil
		}

		attempt, err := c.dedupStore.IncrementAttempts(ctx, env.EventID)
		if err != nil {
			return err
		}
		c.logger.Info("processing self-event",
			slog.String("event_id", env.EventID),
			slog.String("event_type", env.EventType),
			slog.Int("attempt", attempt),
		)

		verified, err := c.verify(ctx, env)
		if err != nil {
			return err
		}
		if !verified {
			c.logger.Warn("self-event verification failed, will retry on redelivery",
				slog.String("event_id", env.EventID),
				slog.String("event_type", env.EventType),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		if err := c.dedupStore.MarkProcessed(ctx, c.config.ServiceName, env.EventID); err != nil {
			return err
		}
		if err := c.outboxRepo.MarkSelfProcessed(ctx, env.EventID); err != nil {
			if !apperrors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		}

		if c.metrics != nil {
			c.metrics.RecordSelfEventVerified(ctx, env.EventType)
		}
		c.logger.Info("self-event verified",
			slog.String("event_id", env.EventID),
			slog.String("event_type", env.EventType),
		)
		return nil
	})
}

// verify dispatches on the event kind. Unknown kinds verify trivially so a
// schema change upstream can never wedge the consumer in a retry loop; the
// metric keeps the drift visible.
func (c *Consumer) verify(ctx context.Context, env *envelope) (bool, error) {
	switch ParseKind(env.EventType) {
	case KindBookingCreated:
		return c.verifyBookingCreated(ctx, env)
	case KindBookingConfirmed:
		return c.verifyBookingStatus(ctx, env, bookingDomain.StatusConfirmed)
	case KindBookingCancelled:
		return c.verifyBookingStatus(ctx, env, bookingDomain.StatusCancelled)
	case KindBookingFailed:
		return c.verifyBookingStatus(ctx, env, bookingDomain.StatusFailed)
	default:
		c.logger.Warn("unknown self-event type treated as processed",
			slog.String("event_id", env.EventID),
			slog.String("event_type", env.EventType),
		)
		if c.metrics != nil {
			c.metrics.RecordSelfEventUnknown(ctx, env.EventType)
		}
		return true, nil
	}
}

// verifyBookingCreated checks the booking row exists and its saga started.
func (c *Consumer) verifyBookingCreated(ctx context.Context, env *envelope) (bool, error) {
	booking, err := c.getBooking(ctx, env)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		c.logger.Error("booking creation verification failed: booking missing",
			slog.String("event_id", env.EventID),
			slog.String("booking_id", bookingID(env)),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if booking.SagaID == "" {
		return false, nil
	}
	_, err = c.sagaRepo.GetBySagaID(ctx, booking.SagaID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		c.logger.Error("booking creation verification failed: saga missing",
			slog.String("event_id", env.EventID),
			slog.String("saga_id", booking.SagaID),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// verifyBookingStatus checks the booking reached the status the event claims.
func (c *Consumer) verifyBookingStatus(ctx context.Context, env *envelope, want bookingDomain.Status) (bool, error) {
	booking, err := c.getBooking(ctx, env)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if booking.Status != want {
		c.logger.Error("booking status verification failed",
			slog.String("event_id", env.EventID),
			slog.String("booking_id", booking.ID.String()),
			slog.String("want", string(want)),
			slog.String("got", string(booking.Status)),
		)
		return false, nil
	}
	return true, nil
}

func (c *Consumer) getBooking(ctx context.Context, env *envelope) (*bookingDomain.Booking, error) {
	id := bookingID(env)
	if id == "" {
		return nil, apperrors.ErrNotFound
	}
	return c.bookingRepo.GetByID(ctx, id)
}

func bookingID(env *envelope) string {
	if env.BookingID != "" {
		return env.BookingID
	}
	return env.AggregateID
}

// escalate handles an event that keeps failing verification past the attempt
// cap. The event stays unprocessed so the failure remains queryable.
func (c *Consumer) escalate(ctx context.Context, env *envelope, attempts int) {
	c.logger.Error("self-event exceeded max processing attempts",
		slog.String("event_id", env.EventID),
		slog.String("event_type", env.EventType),
		slog.Int("attempts", attempts),
		slog.Int("max_attempts", c.config.MaxAttempts),
	)
	if c.metrics != nil {
		c.metrics.RecordSelfEventEscalated(ctx, env.EventType)
	}
}
