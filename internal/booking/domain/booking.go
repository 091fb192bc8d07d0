// Package domain defines the booking aggregate and its lifecycle.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

// Status is the externally observed booking lifecycle state. It is the single
// source of truth for failure communication; saga internals are never exposed.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusValidationPending Status = "VALIDATION_PENDING"
	StatusValidationFailed  Status = "VALIDATION_FAILED"
	StatusConfirmed         Status = "CONFIRMED"
	StatusCancelled         Status = "CANCELLED"
	StatusFailed            Status = "FAILED"
)

// Booking is the aggregate root owned by the orchestrating service. Bookings
// are never hard-deleted; the lifecycle is soft via Status.
type Booking struct {
	ID                 uuid.UUID
	BookingReference   string
	UserID             uuid.UUID
	BookingType        sagaDomain.BookingType
	TotalAmount        int64
	Currency           string
	Status             Status
	SagaID             string
	SagaState          sagaDomain.State
	ProductDetails     string
	ConfirmationNumber *string
	CancellationReason *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
}

// NewBooking creates a pending booking with a fresh reference code.
func NewBooking(
	userID uuid.UUID,
	bookingType sagaDomain.BookingType,
	totalAmount int64,
	currency string,
	productDetails string,
) *Booking {
	id := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	return &Booking{
		ID:               id,
		BookingReference: generateReference(id),
		UserID:           userID,
		BookingType:      bookingType,
		TotalAmount:      totalAmount,
		Currency:         currency,
		Status:           StatusPending,
		SagaState:        sagaDomain.StateBookingInitiated,
		ProductDetails:   productDetails,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Confirm marks the booking confirmed and assigns a confirmation number if
// one was not already set.
func (b *Booking) Confirm() {
	b.Status = StatusConfirmed
	b.SagaState = sagaDomain.StateBookingCompleted
	if b.ConfirmationNumber == nil {
		cn := generateConfirmationNumber()
		b.ConfirmationNumber = &cn
	}
	b.UpdatedAt = time.Now().UTC()
}

// Cancel marks the booking cancelled with the given final status and reason.
func (b *Booking) Cancel(finalStatus Status, reason string) {
	now := time.Now().UTC()
	b.Status = finalStatus
	b.SagaState = sagaDomain.StateBookingCancelled
	b.CancellationReason = &reason
	b.CancelledAt = &now
	b.UpdatedAt = now
}

// Fail marks the booking terminally failed, surfacing it for operator
// intervention.
func (b *Booking) Fail(reason string) {
	b.Status = StatusFailed
	b.SagaState = sagaDomain.StateBookingFailed
	b.CancellationReason = &reason
	b.UpdatedAt = time.Now().UTC()
}

// SetSagaState mirrors the saga state onto the booking for status reads.
func (b *Booking) SetSagaState(state sagaDomain.State) {
	b.SagaState = state
	b.UpdatedAt = time.Now().UTC()
}

// StatusView is the read model served by the status polling boundary.
type StatusView struct {
	BookingID   uuid.UUID
	Status      Status
	SagaState   sagaDomain.State
	LastUpdated time.Time
}

// View returns the status polling read of the booking.
func (b *Booking) View() StatusView {
	return StatusView{
		BookingID:   b.ID,
		Status:      b.Status,
		SagaState:   b.SagaState,
		LastUpdated: b.UpdatedAt,
	}
}

func generateReference(id uuid.UUID) string {
	return fmt.Sprintf("BK-%s", id.String()[:8])
}

func generateConfirmationNumber() string {
	return fmt.Sprintf("CNF-%d", time.Now().UnixMilli())
}
