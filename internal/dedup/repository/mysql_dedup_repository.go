package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pdh/booking/internal/database"
)

// MySQLDedupRepository handles deduplication records for MySQL.
type MySQLDedupRepository struct {
	db *sql.DB
}

// NewMySQLDedupRepository creates a new MySQLDedupRepository.
func NewMySQLDedupRepository(db *sql.DB) *MySQLDedupRepository {
	return &MySQLDedupRepository{
		db: db,
	}
}

// IsProcessed reports whether an event was already processed in the given
// consumer scope.
func (r *MySQLDedupRepository) IsProcessed(ctx context.Context, consumerScope, eventID string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT EXISTS (SELECT 1 FROM deduplication_records WHERE consumer_scope = ? AND event_id = ?)`

	var exists bool
	err := querier.QueryRowContext(ctx, query, consumerScope, eventID).Scan(&exists)
	return exists, err
}

// MarkProcessed records an event as processed. Marking twice is a no-op.
func (r *MySQLDedupRepository) MarkProcessed(ctx context.Context, consumerScope, eventID string) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT IGNORE INTO deduplication_records (consumer_scope, event_id, processed_at)
			  VALUES (?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, consumerScope, eventID, time.Now().UTC())
	return err
}

// AttemptCount returns how many processing attempts the event has seen.
func (r *MySQLDedupRepository) AttemptCount(ctx context.Context, eventID string) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT attempt_count FROM processing_attempts WHERE event_id = ?`

	var count int
	err := querier.QueryRowContext(ctx, query, eventID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// IncrementAttempts bumps the attempt counter for an event and returns the
// new count.
func (r *MySQLDedupRepository) IncrementAttempts(ctx context.Context, eventID string) (int, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO processing_attempts (event_id, attempt_count, updated_at)
			  VALUES (?, 1, NOW())
			  ON DUPLICATE KEY UPDATE attempt_count = attempt_count + 1, updated_at = NOW()`

	if _, err := querier.ExecContext(ctx, query, eventID); err != nil {
		return 0, err
	}

	var count int
	err := querier.QueryRowContext(ctx, `SELECT attempt_count FROM processing_attempts WHERE event_id = ?`, eventID).Scan(&count)
	return count, err
}
