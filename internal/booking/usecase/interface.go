// Package usecase defines the interfaces and implementations for booking
// management use cases. Use cases orchestrate repositories, the saga
// orchestrator and the transactional outbox to implement the booking flow.
package usecase

import (
	"context"

	"github.com/pdh/booking/internal/booking/domain"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

// BookingRepository defines the interface for booking persistence operations.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetBySagaID(ctx context.Context, sagaID string) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error)
}

// SagaOrchestrator defines the orchestrator operations the booking flow uses.
type SagaOrchestrator interface {
	StartSaga(ctx context.Context, booking *domain.Booking) (*sagaDomain.Instance, error)
	HandleEvent(ctx context.Context, event *sagaDomain.Event) error
}

// CreateBookingInput carries the validated fields for a new booking.
type CreateBookingInput struct {
	UserID         string
	BookingType    string
	TotalAmount    int64
	Currency       string
	ProductDetails string
}

// BookingUseCase defines the interface for booking business logic.
type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason string) error
	GetBookingStatus(ctx context.Context, bookingID string) (*domain.StatusView, error)
	ListBookings(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error)
}
