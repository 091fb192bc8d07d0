// Package repository provides data persistence implementations for saga entities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/saga/domain"
)

// PostgreSQLSagaInstanceRepository handles saga instance persistence for PostgreSQL.
type PostgreSQLSagaInstanceRepository struct {
	db *sql.DB
}

// NewPostgreSQLSagaInstanceRepository creates a new PostgreSQLSagaInstanceRepository.
func NewPostgreSQLSagaInstanceRepository(db *sql.DB) *PostgreSQLSagaInstanceRepository {
	return &PostgreSQLSagaInstanceRepository{
		db: db,
	}
}

const pgSagaColumns = `saga_id, booking_id, current_state, is_compensating, compensation_reason,
	version, started_at, last_updated_at, completed_at`

// Create inserts a new saga instance.
func (r *PostgreSQLSagaInstanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO saga_instances (` + pgSagaColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(ctx, query,
		instance.SagaID, instance.BookingID, instance.CurrentState, instance.IsCompensating,
		instance.CompensationReason, instance.Version, instance.StartedAt, instance.LastUpdatedAt,
		instance.CompletedAt)

	return err
}

// GetBySagaID retrieves a saga instance by saga id.
func (r *PostgreSQLSagaInstanceRepository) GetBySagaID(ctx context.Context, sagaID string) (*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgSagaColumns + ` FROM saga_instances WHERE saga_id = $1`

	instance, err := scanInstance(querier.QueryRowContext(ctx, query, sagaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return instance, err
}

// GetByBookingID retrieves a saga instance by the booking it coordinates.
func (r *PostgreSQLSagaInstanceRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgSagaColumns + ` FROM saga_instances WHERE booking_id = $1`

	instance, err := scanInstance(querier.QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return instance, err
}

// Update persists a saga instance guarded by its version. The version the
// caller loaded must still be current, otherwise ErrConflict is returned and
// the caller retries with fresh state.
func (r *PostgreSQLSagaInstanceRepository) Update(ctx context.Context, instance *domain.Instance) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE saga_instances
			  SET current_state = $1, is_compensating = $2, compensation_reason = $3,
			      version = version + 1, last_updated_at = $4, completed_at = $5
			  WHERE saga_id = $6 AND version = $7`

	result, err := querier.ExecContext(ctx, query,
		instance.CurrentState, instance.IsCompensating, instance.CompensationReason,
		instance.LastUpdatedAt, instance.CompletedAt, instance.SagaID, instance.Version)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrConflict
	}

	instance.Version++
	return nil
}

// ListStale retrieves non-terminal sagas that have not progressed since the
// cutoff.
func (r *PostgreSQLSagaInstanceRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgSagaColumns + `
			  FROM saga_instances
			  WHERE completed_at IS NULL AND last_updated_at < $1
			  ORDER BY last_updated_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var instances []*domain.Instance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*domain.Instance, error) {
	var instance domain.Instance
	var compensationReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&instance.SagaID, &instance.BookingID, &instance.CurrentState, &instance.IsCompensating,
		&compensationReason, &instance.Version, &instance.StartedAt, &instance.LastUpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	if compensationReason.Valid {
		instance.CompensationReason = &compensationReason.String
	}
	if completedAt.Valid {
		value := completedAt.Time
		instance.CompletedAt = &value
	}

	return &instance, nil
}
