package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	outboxDomain "github.com/pdh/booking/internal/outbox/domain"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

// Config holds booking use case configuration.
type Config struct {
	BookingEventsTopic string
}

// bookingUseCase implements BookingUseCase.
type bookingUseCase struct {
	config       Config
	txManager    database.TxManager
	bookingRepo  BookingRepository
	orchestrator SagaOrchestrator
	outboxWriter OutboxWriter
	logger       *slog.Logger
}

// OutboxWriter appends events to the transactional outbox.
type OutboxWriter interface {
	Append(ctx context.Context, event *outboxDomain.Event) error
}

// NewBookingUseCase creates a new BookingUseCase.
func NewBookingUseCase(
	config Config,
	txManager database.TxManager,
	bookingRepo BookingRepository,
	orchestrator SagaOrchestrator,
	outboxWriter OutboxWriter,
	logger *slog.Logger,
) BookingUseCase {
	return &bookingUseCase{
		config:       config,
		txManager:    txManager,
		bookingRepo:  bookingRepo,
		orchestrator: orchestrator,
		outboxWriter: outboxWriter,
		logger:       logger,
	}
}

// CreateBooking inserts the booking, starts its saga and appends the
// BookingCreated event plus the first saga command to the outbox, all in one
// transaction. Either everything lands or nothing does.
func (u *bookingUseCase) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid user id")
	}
	bookingType := sagaDomain.BookingType(input.BookingType)
	if !bookingType.Valid() {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid booking type")
	}
	if input.TotalAmount <= 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "total amount must be positive")
	}
	if input.Currency == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "currency is required")
	}

	booking := domain.NewBooking(userID, bookingType, input.TotalAmount, input.Currency, input.ProductDetails)

	err = u.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := u.bookingRepo.Create(ctx, booking); err != nil {
			return err
		}

		if _, err := u.orchestrator.StartSaga(ctx, booking); err != nil {
			return err
		}

		event, err := domain.NewLifecycleOutboxEvent(domain.EventTypeBookingCreated, booking, u.config.BookingEventsTopic)
		if err != nil {
			return err
		}
		return u.outboxWriter.Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	u.logger.Info("booking created",
		slog.String("booking_id", booking.ID.String()),
		slog.String("booking_reference", booking.BookingReference),
		slog.String("saga_id", booking.SagaID),
		slog.String("booking_type", string(booking.BookingType)),
	)
	return booking, nil
}

// CancelBooking requests cancellation through the saga's own event path, so
// cancellation and participant failures share one compensation flow.
func (u *bookingUseCase) CancelBooking(ctx context.Context, bookingID, reason string) error {
	booking, err := u.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.Status == domain.StatusCancelled || booking.Status == domain.StatusFailed {
		return apperrors.Wrap(apperrors.ErrConflict, "booking already finished")
	}
	if booking.Status == domain.StatusConfirmed {
		return apperrors.Wrap(apperrors.ErrConflict, "confirmed booking cannot be cancelled here")
	}

	if reason == "" {
		reason = "cancelled by user"
	}

	event := &sagaDomain.Event{
		Kind:      sagaDomain.EventCancelBookingRequested,
		EventID:   uuid.Must(uuid.NewV7()).String(),
		EventType: "CancelBookingRequested",
		BookingID: booking.ID,
		SagaID:    booking.SagaID,
		Reason:    reason,
	}
	return u.orchestrator.HandleEvent(ctx, event)
}

// GetBookingStatus returns the status polling read model.
func (u *bookingUseCase) GetBookingStatus(ctx context.Context, bookingID string) (*domain.StatusView, error) {
	booking, err := u.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	view := booking.View()
	return &view, nil
}

// ListBookings returns a page of the user's bookings, newest first.
func (u *bookingUseCase) ListBookings(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid user id")
	}
	return u.bookingRepo.ListByUserID(ctx, userID, limit, offset)
}
