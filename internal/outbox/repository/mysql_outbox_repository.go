package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/outbox/domain"
)

// MySQLOutboxEventRepository handles outbox event persistence for MySQL.
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

// NewMySQLOutboxEventRepository creates a new MySQLOutboxEventRepository.
func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{
		db: db,
	}
}

const mysqlOutboxColumns = `event_id, event_type, aggregate_type, aggregate_id, payload, created_at,
	processed, processed_at, retry_count, max_retries, next_retry_at, error_message,
	saga_id, priority, topic, partition_key, expires_at, self_processed, self_processed_at`

// Create inserts a new outbox event. It requires an open transaction in the
// context.
func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.Event) error {
	querier, err := database.RequireTx(ctx)
	if err != nil {
		return err
	}

	query := `INSERT INTO outbox_events (` + mysqlOutboxColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		idBytes, event.EventType, event.AggregateType, event.AggregateID, event.Payload, event.CreatedAt,
		event.Processed, event.ProcessedAt, event.RetryCount, event.MaxRetries, event.NextRetryAt, event.ErrorMessage,
		event.SagaID, event.Priority, event.Topic, event.PartitionKey, event.ExpiresAt,
		event.SelfProcessed, event.SelfProcessedAt)

	return err
}

// GetPending retrieves unprocessed, unexpired events that are due for
// delivery, highest priority first then FIFO.
func (r *MySQLOutboxEventRepository) GetPending(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlOutboxColumns + `
			  FROM outbox_events
			  WHERE processed = FALSE
			    AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			    AND (expires_at IS NULL OR expires_at > NOW())
			    AND (max_retries = 0 OR retry_count < max_retries)
			  ORDER BY priority ASC, created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var events []*domain.Event
	for rows.Next() {
		event, err := scanMySQLEvent(rows)
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

// GetByEventID retrieves a single outbox event by its event id.
func (r *MySQLOutboxEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := uuidBytes(eventID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + mysqlOutboxColumns + ` FROM outbox_events WHERE event_id = ?`

	event, err := scanMySQLEvent(querier.QueryRowContext(ctx, query, idBytes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return event, err
}

// Update persists relay processing state for an outbox event.
func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_events
			  SET processed = ?, processed_at = ?, retry_count = ?, next_retry_at = ?, error_message = ?
			  WHERE event_id = ?`

	idBytes, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		event.Processed, event.ProcessedAt, event.RetryCount, event.NextRetryAt, event.ErrorMessage, idBytes)

	return err
}

// MarkSelfProcessed records self-event verification.
func (r *MySQLOutboxEventRepository) MarkSelfProcessed(ctx context.Context, eventID string) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := uuidBytes(eventID)
	if err != nil {
		return err
	}

	query := `UPDATE outbox_events SET self_processed = TRUE, self_processed_at = NOW() WHERE event_id = ?`

	_, err = querier.ExecContext(ctx, query, idBytes)
	return err
}

// DeleteExpired reaps events past their expiry that were never processed.
func (r *MySQLOutboxEventRepository) DeleteExpired(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_events WHERE processed = FALSE AND expires_at IS NOT NULL AND expires_at <= NOW()`

	result, err := querier.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountFailed returns the number of events that exhausted their retries.
func (r *MySQLOutboxEventRepository) CountFailed(ctx context.Context) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*) FROM outbox_events
			  WHERE processed = FALSE AND max_retries > 0 AND retry_count >= max_retries`

	var count int64
	err := querier.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func uuidBytes(id string) ([]byte, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.ErrInvalidInput
	}
	return parsed.MarshalBinary()
}

func scanMySQLEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var idBytes []byte
	var sagaID sql.NullString
	var processedAt, nextRetryAt, expiresAt, selfProcessedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&idBytes, &event.EventType, &event.AggregateType, &event.AggregateID, &event.Payload, &event.CreatedAt,
		&event.Processed, &processedAt, &event.RetryCount, &event.MaxRetries, &nextRetryAt, &errorMessage,
		&sagaID, &event.Priority, &event.Topic, &event.PartitionKey, &expiresAt,
		&event.SelfProcessed, &selfProcessedAt)
	if err != nil {
		return nil, err
	}

	// Convert bytes back to UUID
	if err := event.ID.UnmarshalBinary(idBytes); err != nil {
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
