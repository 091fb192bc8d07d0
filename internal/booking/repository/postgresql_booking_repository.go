// Package repository provides data persistence implementations for booking entities.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
)

// PostgreSQLBookingRepository handles booking persistence for PostgreSQL.
type PostgreSQLBookingRepository struct {
	db *sql.DB
}

// NewPostgreSQLBookingRepository creates a new PostgreSQLBookingRepository.
func NewPostgreSQLBookingRepository(db *sql.DB) *PostgreSQLBookingRepository {
	return &PostgreSQLBookingRepository{
		db: db,
	}
}

const pgBookingColumns = `id, booking_reference, user_id, booking_type, total_amount, currency,
	status, saga_id, saga_state, product_details, confirmation_number, cancellation_reason,
	created_at, updated_at, cancelled_at`

// Create inserts a new booking.
func (r *PostgreSQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO bookings (` + pgBookingColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := querier.ExecContext(ctx, query,
		booking.ID, booking.BookingReference, booking.UserID, booking.BookingType,
		booking.TotalAmount, booking.Currency, booking.Status, booking.SagaID, booking.SagaState,
		booking.ProductDetails, booking.ConfirmationNumber, booking.CancellationReason,
		booking.CreatedAt, booking.UpdatedAt, booking.CancelledAt)

	return err
}

// GetByID retrieves a booking by id.
func (r *PostgreSQLBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgBookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(querier.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return booking, err
}

// GetBySagaID retrieves the booking coordinated by a saga.
func (r *PostgreSQLBookingRepository) GetBySagaID(ctx context.Context, sagaID string) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgBookingColumns + ` FROM bookings WHERE saga_id = $1`

	booking, err := scanBooking(querier.QueryRowContext(ctx, query, sagaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return booking, err
}

// Update persists booking state.
func (r *PostgreSQLBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings
			  SET status = $1, saga_id = $2, saga_state = $3, confirmation_number = $4,
			      cancellation_reason = $5, updated_at = $6, cancelled_at = $7
			  WHERE id = $8`

	_, err := querier.ExecContext(ctx, query,
		booking.Status, booking.SagaID, booking.SagaState, booking.ConfirmationNumber,
		booking.CancellationReason, booking.UpdatedAt, booking.CancelledAt, booking.ID)

	return err
}

// ListByUserID retrieves a user's bookings with pagination, newest first.
func (r *PostgreSQLBookingRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + pgBookingColumns + `
			  FROM bookings
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var confirmationNumber, cancellationReason sql.NullString
	var cancelledAt sql.NullTime

	err := row.Scan(
		&booking.ID, &booking.BookingReference, &booking.UserID, &booking.BookingType,
		&booking.TotalAmount, &booking.Currency, &booking.Status, &booking.SagaID, &booking.SagaState,
		&booking.ProductDetails, &confirmationNumber, &cancellationReason,
		&booking.CreatedAt, &booking.UpdatedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	if confirmationNumber.Valid {
		booking.ConfirmationNumber = &confirmationNumber.String
	}
	if cancellationReason.Valid {
		booking.CancellationReason = &cancellationReason.String
	}
	if cancelledAt.Valid {
		value := cancelledAt.Time
		booking.CancelledAt = &value
	}

	return &booking, nil
}
