package repository

import (
	"context"
	"database/sql"

	"github.com/pdh/booking/internal/database"
	"github.com/pdh/booking/internal/saga/domain"
)

// PostgreSQLStateLogRepository handles saga state transition audit records for PostgreSQL.
type PostgreSQLStateLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLStateLogRepository creates a new PostgreSQLStateLogRepository.
func NewPostgreSQLStateLogRepository(db *sql.DB) *PostgreSQLStateLogRepository {
	return &PostgreSQLStateLogRepository{
		db: db,
	}
}

const pgStateLogColumns = `id, saga_id, booking_id, from_state, to_state, reason, triggered_by, duration_ms, created_at`

// Create appends a state transition record. The log is append-only.
func (r *PostgreSQLStateLogRepository) Create(ctx context.Context, log *domain.StateLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO saga_state_logs (saga_id, booking_id, from_state, to_state, reason, triggered_by, duration_ms, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id`

	return querier.QueryRowContext(ctx, query,
		log.SagaID, log.BookingID, log.FromState, log.ToState,
		log.Reason, log.TriggeredBy, log.DurationMs, log.CreatedAt).Scan(&log.ID)
}

// ListBySagaID retrieves the transition history for a saga, oldest first.
func (r *PostgreSQLStateLogRepository) ListBySagaID(ctx context.Context, sagaID string) ([]*domain.StateLog, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgStateLogColumns + `
			  FROM saga_state_logs
			  WHERE saga_id = $1
			  ORDER BY created_at ASC`

	rows, err := querier.QueryContext(ctx, query, sagaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var logs []*domain.StateLog
	for rows.Next() {
		var log domain.StateLog
		var fromState sql.NullString

		err := rows.Scan(&log.ID, &log.SagaID, &log.BookingID, &fromState, &log.ToState,
			&log.Reason, &log.TriggeredBy, &log.DurationMs, &log.CreatedAt)
		if err != nil {
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
