// Package usecase implements the outbox business logic: the transactional
// writer and the relay that drains pending events to Kafka.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/kafka"
	"github.com/pdh/booking/internal/outbox/domain"
)

// Config holds relay configuration.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// EventRepository defines outbox event repository operations.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetPending(ctx context.Context, limit int) ([]*domain.Event, error)
	GetByEventID(ctx context.Context, eventID string) (*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	MarkSelfProcessed(ctx context.Context, eventID string) error
	DeleteExpired(ctx context.Context) (int64, error)
	CountFailed(ctx context.Context) (int64, error)
}

// EventPublisher publishes a message to the broker.
type EventPublisher interface {
	Publish(message *kafka.Message) error
}

// RelayMetrics records relay outcomes.
type RelayMetrics interface {
	RecordEventPublished(ctx context.Context, eventType string)
	RecordEventFailed(ctx context.Context, eventType string)
	RecordEventsReaped(ctx context.Context, count int64)
	RecordFailedBacklog(ctx context.Context, count int64)
}

// Writer appends events to the outbox. Append must be called inside the same
// transaction as the business mutation the event describes; the repository
// rejects calls without an open transaction.
type Writer struct {
	outboxRepo EventRepository
	maxRetries int
}

// NewWriter creates a new Writer. maxRetries caps delivery attempts for
// events appended without an explicit cap of their own.
func NewWriter(outboxRepo EventRepository, maxRetries int) *Writer {
	return &Writer{
		outboxRepo: outboxRepo,
		maxRetries: maxRetries,
	}
}

// Append stores an event for later delivery.
func (w *Writer) Append(ctx context.Context, event *domain.Event) error {
	if event.Topic == "" || event.Payload == "" {
		return apperrors.ErrInvalidInput
	}
	if event.MaxRetries == 0 {
		event.MaxRetries = w.maxRetries
	}
	return w.outboxRepo.Create(ctx, event)
}

// Relay drains pending outbox events to Kafka on a fixed interval.
type Relay struct {
	config     Config
	txManager  database.TxManager
	outboxRepo EventRepository
	publisher  EventPublisher
	metrics    RelayMetrics
	logger     *slog.Logger
}

// NewRelay creates a new Relay.
func NewRelay(
	config Config,
	txManager database.TxManager,
	outboxRepo EventRepository,
	publisher EventPublisher,
	metrics RelayMetrics,
	logger *slog.Logger,
) *Relay {
	return &Relay{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start runs the relay loop until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting outbox relay",
		slog.Duration("poll_interval", r.config.PollInterval),
		slog.Int("batch_size", r.config.BatchSize),
	)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping outbox relay")
			return ctx.Err()
		case <-ticker.C:
			if err := r.ProcessPending(ctx); err != nil {
				r.logger.Error("failed to process pending events", slog.Any("error", err))
			}
			if err := r.ReapExpired(ctx); err != nil {
				r.logger.Error("failed to reap expired events", slog.Any("error", err))
			}
			if err := r.ReportFailedBacklog(ctx); err != nil {
				r.logger.Error("failed to count failed events", slog.Any("error", err))
			}
		}
	}
}

// ProcessPending picks a locked batch of due events and publishes each one.
// Successes are marked processed; failures are rescheduled with exponential
// backoff. Row locks keep concurrent relay instances from double-publishing.
func (r *Relay) ProcessPending(ctx context.Context) error {
	return r.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := r.outboxRepo.GetPending(ctx, r.config.BatchSize)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			return nil
		}

		r.logger.Info("relaying events", slog.Int("count", len(events)))

		for _, event := range events {
			if err := r.publishEvent(event); err != nil {
				r.logger.Error("failed to publish event",
					slog.String("event_id", event.ID.String()),
					slog.String("event_type", event.EventType),
					slog.Int("retry_count", event.RetryCount),
					slog.Any("error", err),
				)

				event.RecordFailure(err.Error())
				if event.RetriesExhausted() {
					r.logger.Error("event retries exhausted",
						slog.String("event_id", event.ID.String()),
						slog.String("event_type", event.EventType),
					)
					if r.metrics != nil {
						r.metrics.RecordEventFailed(ctx, event.EventType)
					}
				}

				if err := r.outboxRepo.Update(ctx, event); err != nil {
					return err
				}
				continue
			}

			event.MarkProcessed()
			if err := r.outboxRepo.Update(ctx, event); err != nil {
				return err
			}
			if r.metrics != nil {
				r.metrics.RecordEventPublished(ctx, event.EventType)
			}
		}

		return nil
	})
}

// ReapExpired deletes unprocessed events past their expiry.
func (r *Relay) ReapExpired(ctx context.Context) error {
	return r.txManager.WithTx(ctx, func(ctx context.Context) error {
		reaped, err := r.outboxRepo.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		if reaped > 0 {
			r.logger.Warn("reaped expired events", slog.Int64("count", reaped))
			if r.metrics != nil {
				r.metrics.RecordEventsReaped(ctx, reaped)
			}
		}
		return nil
	})
}

// ReportFailedBacklog exports the number of events whose retries are
// exhausted, so operators can alert on rows needing manual intervention.
func (r *Relay) ReportFailedBacklog(ctx context.Context) error {
	count, err := r.outboxRepo.CountFailed(ctx)
	if err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.RecordFailedBacklog(ctx, count)
	}
	if count > 0 {
		r.logger.Warn("outbox events with exhausted retries", slog.Int64("count", count))
	}
	return nil
}

func (r *Relay) publishEvent(event *domain.Event) error {
	return r.publisher.Publish(&kafka.Message{
		Topic: event.Topic,
		Key:   event.PartitionKey,
		Value: []byte(event.Payload),
		Headers: map[string]string{
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID,
			"event_id":       event.ID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339),
		},
		Timestamp: event.CreatedAt,
	})
}
