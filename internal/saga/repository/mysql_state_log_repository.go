package repository

import (
	"context"
	"database/sql"

	"github.com/pdh/booking/internal/database"
	"github.com/pdh/booking/internal/saga/domain"
)

// MySQLStateLogRepository handles saga state transition audit records for MySQL.
type MySQLStateLogRepository struct {
	db *sql.DB
}

// NewMySQLStateLogRepository creates a new MySQLStateLogRepository.
func NewMySQLStateLogRepository(db *sql.DB) *MySQLStateLogRepository {
	return &MySQLStateLogRepository{
		db: db,
	}
}

const mysqlStateLogColumns = `id, saga_id, booking_id, from_state, to_state, reason, triggered_by, duration_ms, created_at`

// Create appends a state transition record.
func (r *MySQLStateLogRepository) Create(ctx context.Context, log *domain.StateLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO saga_state_logs (saga_id, booking_id, from_state, to_state, reason, triggered_by, duration_ms, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	bookingIDBytes, err := log.BookingID.MarshalBinary()
	if err != nil {
		return err
	}

	result, err := querier.ExecContext(ctx, query,
		log.SagaID, bookingIDBytes, log.FromState, log.ToState,
		log.Reason, log.TriggeredBy, log.DurationMs, log.CreatedAt)
	if err != nil {
		return err
	}

	log.ID, err = result.LastInsertId()
	return err
}

// ListBySagaID retrieves the transition history for a saga, oldest first.
func (r *MySQLStateLogRepository) ListBySagaID(ctx context.Context, sagaID string) ([]*domain.StateLog, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlStateLogColumns + `
			  FROM saga_state_logs
			  WHERE saga_id = ?
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, sagaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var logs []*domain.StateLog
	for rows.Next() {
		var log domain.StateLog
		var bookingIDBytes []byte
		var fromState sql.NullString

		err := rows.Scan(&log.ID, &log.SagaID, &bookingIDBytes, &fromState, &log.ToState,
			&log.Reason, &log.TriggeredBy, &log.DurationMs, &log.CreatedAt)
		if err != nil {
			return nil, err
		}

		if err := log.BookingID.UnmarshalBinary(bookingIDBytes); err != nil {
			return nil, err
		}

		if fromState.Valid {
			state := domain.State(fromState.String)
			log.FromState = &state
		}

		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
