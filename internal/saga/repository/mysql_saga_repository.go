package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/saga/domain"
)

// MySQLSagaInstanceRepository handles saga instance persistence for MySQL.
type MySQLSagaInstanceRepository struct {
	db *sql.DB
}

// NewMySQLSagaInstanceRepository creates a new MySQLSagaInstanceRepository.
func NewMySQLSagaInstanceRepository(db *sql.DB) *MySQLSagaInstanceRepository {
	return &MySQLSagaInstanceRepository{
		db: db,
	}
}

const mysqlSagaColumns = `saga_id, booking_id, current_state, is_compensating, compensation_reason,
	version, started_at, last_updated_at, completed_at`

// Create inserts a new saga instance.
func (r *MySQLSagaInstanceRepository) Create(ctx context.Context, instance *domain.Instance) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO saga_instances (` + mysqlSagaColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	bookingIDBytes, err := instance.BookingID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		instance.SagaID, bookingIDBytes, instance.CurrentState, instance.IsCompensating,
		instance.CompensationReason, instance.Version, instance.StartedAt, instance.LastUpdatedAt,
		instance.CompletedAt)

	return err
}

// GetBySagaID retrieves a saga instance by saga id.
func (r *MySQLSagaInstanceRepository) GetBySagaID(ctx context.Context, sagaID string) (*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlSagaColumns + ` FROM saga_instances WHERE saga_id = ?`

	instance, err := scanMySQLInstance(querier.QueryRowContext(ctx, query, sagaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return instance, err
}

// GetByBookingID retrieves a saga instance by the booking it coordinates.
func (r *MySQLSagaInstanceRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := uuidBytes(bookingID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + mysqlSagaColumns + ` FROM saga_instances WHERE booking_id = ?`

	instance, err := scanMySQLInstance(querier.QueryRowContext(ctx, query, idBytes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return instance, err
}

// Update persists a saga instance guarded by its version.
func (r *MySQLSagaInstanceRepository) Update(ctx context.Context, instance *domain.Instance) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE saga_instances
			  SET current_state = ?, is_compensating = ?, compensation_reason = ?,
			      version = version + 1, last_updated_at = ?, completed_at = ?
			  WHERE saga_id = ? AND version = ?`

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
func (r *MySQLSagaInstanceRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Instance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlSagaColumns + `
			  FROM saga_instances
			  WHERE completed_at IS NULL AND last_updated_at < ?
			  ORDER BY last_updated_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var instances []*domain.Instance
	for rows.Next() {
		instance, err := scanMySQLInstance(rows)
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

func uuidBytes(id string) ([]byte, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.ErrInvalidInput
	}
	return parsed.MarshalBinary()
}

func scanMySQLInstance(row rowScanner) (*domain.Instance, error) {
	var instance domain.Instance
	var bookingIDBytes []byte
	var compensationReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&instance.SagaID, &bookingIDBytes, &instance.CurrentState, &instance.IsCompensating,
		&compensationReason, &instance.Version, &instance.StartedAt, &instance.LastUpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	// Convert bytes back to UUID
	if err := instance.BookingID.UnmarshalBinary(bookingIDBytes); err != nil {
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
