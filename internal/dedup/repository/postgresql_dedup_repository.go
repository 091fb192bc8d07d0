// Package repository provides deduplication record persistence.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pdh/booking/internal/database"
)

// PostgreSQLDedupRepository handles deduplication records for PostgreSQL.
type PostgreSQLDedupRepository struct {
	db *sql.DB
}

// NewPostgreSQLDedupRepository creates a new PostgreSQLDedupRepository.
func NewPostgreSQLDedupRepository(db *sql.DB) *PostgreSQLDedupRepository {
	return &PostgreSQLDedupRepository{
		db: db,
	}
}

// IsProcessed reports whether an event was already processed in the given
// consumer scope.
func (r *PostgreSQLDedupRepository) IsProcessed(ctx context.Context, consumerScope, eventID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (SELECT 1 FROM deduplication_records WHERE consumer_scope = $1 AND event_id = $2)`

	var exists bool
	err := querier.QueryRowContext(ctx, query, consumerScope, eventID).Scan(&exists)
	return exists, err
}

// MarkProcessed records an event as processed. Marking twice is a no-op so
// concurrent consumers racing on the same event both succeed.
func (r *PostgreSQLDedupRepository) MarkProcessed(ctx context.Context, consumerScope, eventID string) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO deduplication_records (consumer_scope, event_id, processed_at)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (consumer_scope, event_id) DO NOTHING`

	_, err := querier.ExecContext(ctx, query, consumerScope, eventID, time.Now().UTC())
	return err
}

// AttemptCount returns how many processing attempts the event has seen.
// Unknown events report zero.
func (r *PostgreSQLDedupRepository) AttemptCount(ctx context.Context, eventID string) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT attempt_count FROM processing_attempts WHERE event_id = $1`

	var count int
	err := querier.QueryRowContext(ctx, query, eventID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// IncrementAttempts bumps the attempt counter for an event and returns the
// new count.
func (r *PostgreSQLDedupRepository) IncrementAttempts(ctx context.Context, eventID string) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO processing_attempts (event_id, attempt_count, updated_at)
			  VALUES ($1, 1, NOW())
			  ON CONFLICT (event_id) DO UPDATE
			  SET attempt_count = processing_attempts.attempt_count + 1, updated_at = NOW()
			  RETURNING attempt_count`

	var count int
	err := querier.QueryRowContext(ctx, query, eventID).Scan(&count)
	return count, err
}
