// Package repository provides data persistence implementations for outbox events.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/outbox/domain"
)

// PostgreSQLOutboxEventRepository handles outbox event persistence for PostgreSQL.
type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxEventRepository creates a new PostgreSQLOutboxEventRepository.
func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{
		db: db,
	}
}

const pgOutboxColumns = `event_id, event_type, aggregate_type, aggregate_id, payload, created_at,
	processed, processed_at, retry_count, max_retries, next_retry_at, error_message,
	saga_id, priority, topic, partition_key, expires_at, self_processed, self_processed_at`

// Create inserts a new outbox event. It requires an open transaction in the
// context: the insert must be atomic with the business mutation it describes.
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.Event) error {
	querier, err := database.RequireTx(ctx)
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox_events (` + pgOutboxColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = querier.ExecContext(ctx, query,
		event.ID, event.EventType, event.AggregateType, event.AggregateID, event.Payload, event.CreatedAt,
		event.Processed, event.ProcessedAt, event.RetryCount, event.MaxRetries, event.NextRetryAt, event.ErrorMessage,
		event.SagaID, event.Priority, event.Topic, event.PartitionKey, event.ExpiresAt,
		event.SelfProcessed, event.SelfProcessedAt)

	return err
}

// GetPending retrieves unprocessed, unexpired events that are due for
// delivery, highest priority first then FIFO, locking the rows so concurrent
// relay instances never pick the same batch.
func (r *PostgreSQLOutboxEventRepository) GetPending(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgOutboxColumns + `
			  FROM outbox_events
			  WHERE processed = FALSE
			    AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			    AND (expires_at IS NULL OR expires_at > NOW())
			    AND (max_retries = 0 OR retry_count < max_retries)
			  ORDER BY priority ASC, created_at ASC
			  LIMIT $1
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return scanEvents(rows)
}

// GetByEventID retrieves a single outbox event by its event id.
func (r *PostgreSQLOutboxEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgOutboxColumns + ` FROM outbox_events WHERE event_id = $1`

	event, err := scanEvent(querier.QueryRowContext(ctx, query, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return event, err
}

// Update persists relay processing state for an outbox event.
func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET processed = $1, processed_at = $2, retry_count = $3, next_retry_at = $4, error_message = $5
			  WHERE event_id = $6`

	_, err := querier.ExecContext(ctx, query,
		event.Processed, event.ProcessedAt, event.RetryCount, event.NextRetryAt, event.ErrorMessage, event.ID)

	return err
}

// MarkSelfProcessed records self-event verification, distinct from relay
// processing.
func (r *PostgreSQLOutboxEventRepository) MarkSelfProcessed(ctx context.Context, eventID string) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events SET self_processed = TRUE, self_processed_at = NOW() WHERE event_id = $1`

	_, err := querier.ExecContext(ctx, query, eventID)
	return err
}

// DeleteExpired reaps events past their expiry that were never processed.
// Returns the number of reaped rows.
func (r *PostgreSQLOutboxEventRepository) DeleteExpired(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE processed = FALSE AND expires_at IS NOT NULL AND expires_at <= NOW()`

	result, err := querier.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountFailed returns the number of events that exhausted their retries.
// Surfaced as an operator-facing failure count; failed events are never
// silently dropped.
func (r *PostgreSQLOutboxEventRepository) CountFailed(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_events
			  WHERE processed = FALSE AND max_retries > 0 AND retry_count >= max_retries`

	var count int64
	err := querier.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var sagaID sql.NullString
	var processedAt, nextRetryAt, expiresAt, selfProcessedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&event.ID, &event.EventType, &event.AggregateType, &event.AggregateID, &event.Payload, &event.CreatedAt,
		&event.Processed, &processedAt, &event.RetryCount, &event.MaxRetries, &nextRetryAt, &errorMessage,
		&sagaID, &event.Priority, &event.Topic, &event.PartitionKey, &expiresAt,
		&event.SelfProcessed, &selfProcessedAt)
	if err != nil {
		return nil, err
	}

	if sagaID.Valid {
		event.SagaID = &sagaID.String
	}
	if errorMessage.Valid {
		event.ErrorMessage = &errorMessage.String
	}
	event.ProcessedAt = nullableTime(processedAt)
	event.NextRetryAt = nullableTime(nextRetryAt)
	event.ExpiresAt = nullableTime(expiresAt)
	event.SelfProcessedAt = nullableTime(selfProcessedAt)

	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
