package usecase

import (
	"context"
	"time"

	"github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/metrics"
)

// bookingUseCaseWithMetrics decorates BookingUseCase with metrics instrumentation.
type bookingUseCaseWithMetrics struct {
	next    BookingUseCase
	metrics metrics.BusinessMetrics
}

// NewBookingUseCaseWithMetrics wraps a BookingUseCase with metrics recording.
func NewBookingUseCaseWithMetrics(useCase BookingUseCase, m metrics.BusinessMetrics) BookingUseCase {
	return &bookingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// CreateBooking records metrics for booking creation.
func (b *bookingUseCaseWithMetrics) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	start := time.Now()
	booking, err := b.next.CreateBooking(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
	}

	b.metrics.RecordOperation(ctx, "booking", "booking_create", status)
	b.metrics.RecordDuration(ctx, "booking", "booking_create", time.Since(start), status)

	return booking, err
}

// CancelBooking records metrics for cancellation requests.
func (b *bookingUseCaseWithMetrics) CancelBooking(ctx context.Context, bookingID, reason string) error {
	start := time.Now()
	err := b.next.CancelBooking(ctx, bookingID, reason)

	status := "success"
	if err != nil {
		status = "error"
	}

	b.metrics.RecordOperation(ctx, "booking", "booking_cancel", status)
	b.metrics.RecordDuration(ctx, "booking", "booking_cancel", time.Since(start), status)

	return err
}

// GetBookingStatus records metrics for status reads.
func (b *bookingUseCaseWithMetrics) GetBookingStatus(ctx context.Context, bookingID string) (*domain.StatusView, error) {
	start := time.Now()
	view, err := b.next.GetBookingStatus(ctx, bookingID)

	status := "success"
	if err != nil {
		status = "error"
	}

	b.metrics.RecordOperation(ctx, "booking", "booking_status", status)
	b.metrics.RecordDuration(ctx, "booking", "booking_status", time.Since(start), status)

	return view, err
}

// ListBookings records metrics for booking listings.
func (b *bookingUseCaseWithMetrics) ListBookings(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, error) {
	start := time.Now()
	bookings, err := b.next.ListBookings(ctx, userID, limit, offset)

	status := "success"
	if err != nil {
		status = "error"
	}

	b.metrics.RecordOperation(ctx, "booking", "booking_list", status)
	b.metrics.RecordDuration(ctx, "booking", "booking_list", time.Since(start), status)

	return bookings, err
}
