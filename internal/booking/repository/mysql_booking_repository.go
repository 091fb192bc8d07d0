package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
)

// MySQLBookingRepository handles booking persistence for MySQL.
type MySQLBookingRepository struct {
	db *sql.DB
}

// NewMySQLBookingRepository creates a new MySQLBookingRepository.
func NewMySQLBookingRepository(db *sql.DB) *MySQLBookingRepository {
	return &MySQLBookingRepository{
		db: db,
	}
}

const mysqlBookingColumns = `id, booking_reference, user_id, booking_type, total_amount, currency,
	status, saga_id, saga_state, product_details, confirmation_number, cancellation_reason,
	created_at, updated_at, cancelled_at`

// Create inserts a new booking.
func (r *MySQLBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO bookings (` + mysqlBookingColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Convert UUID to bytes for MySQL BINARY(16)
	idBytes, err := booking.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		idBytes, booking.BookingReference, booking.UserID, booking.BookingType,
		booking.TotalAmount, booking.Currency, booking.Status, booking.SagaID, booking.SagaState,
		booking.ProductDetails, booking.ConfirmationNumber, booking.CancellationReason,
		booking.CreatedAt, booking.UpdatedAt, booking.CancelledAt)

	return err
}

// GetByID retrieves a booking by id.
func (r *MySQLBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := uuidBytes(id)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + mysqlBookingColumns + ` FROM bookings WHERE id = ?`

	booking, err := scanMySQLBooking(querier.QueryRowContext(ctx, query, idBytes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return booking, err
}

// GetBySagaID retrieves the booking coordinated by a saga.
func (r *MySQLBookingRepository) GetBySagaID(ctx context.Context, sagaID string) (*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlBookingColumns + ` FROM bookings WHERE saga_id = ?`

	booking, err := scanMySQLBooking(querier.QueryRowContext(ctx, query, sagaID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	return booking, err
}

// Update persists booking state.
func (r *MySQLBookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE bookings
			  SET status = ?, saga_id = ?, saga_state = ?, confirmation_number = ?,
			      cancellation_reason = ?, updated_at = ?, cancelled_at = ?
			  WHERE id = ?`

	idBytes, err := booking.ID.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, query,
		booking.Status, booking.SagaID, booking.SagaState, booking.ConfirmationNumber,
		booking.CancellationReason, booking.UpdatedAt, booking.CancelledAt, idBytes)

	return err
}

// ListByUserID retrieves a user's bookings with pagination, newest first.
func (r *MySQLBookingRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + mysqlBookingColumns + `
			  FROM bookings
			  WHERE user_id = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanMySQLBooking(rows)
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

func uuidBytes(id string) ([]byte, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.ErrInvalidInput
	}
	return parsed.MarshalBinary()
}

func scanMySQLBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var idBytes []byte
	var confirmationNumber, cancellationReason sql.NullString
	var cancelledAt sql.NullTime

	err := row.Scan(
		&idBytes, &booking.BookingReference, &booking.UserID, &booking.BookingType,
		&booking.TotalAmount, &booking.Currency, &booking.Status, &booking.SagaID, &booking.SagaState,
		&booking.ProductDetails, &confirmationNumber, &cancellationReason,
		&booking.CreatedAt, &booking.UpdatedAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	// Convert bytes back to UUID
	if err := booking.ID.UnmarshalBinary(idBytes); err != nil {
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
