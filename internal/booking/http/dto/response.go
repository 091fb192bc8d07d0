package dto

import (
	"time"

	bookingDomain "github.com/pdh/booking/internal/booking/domain"
)

// BookingResponse represents a booking in API responses.
type BookingResponse struct {
	ID                 string    `json:"id"`
	BookingReference   string    `json:"booking_reference"`
	UserID             string    `json:"user_id"`
	BookingType        string    `json:"booking_type"`
	TotalAmount        int64     `json:"total_amount"`
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	SagaID             string    `json:"saga_id"`
	SagaState          string    `json:"saga_state"`
	ConfirmationNumber *string   `json:"confirmation_number,omitempty"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BookingStatusResponse is the status polling read model in API responses.
type BookingStatusResponse struct {
	BookingID   string    `json:"booking_id"`
	Status      string    `json:"status"`
	SagaState   string    `json:"saga_state"`
	LastUpdated time.Time `json:"last_updated"`
}

// BookingListResponse wraps a page of bookings.
type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Offset   int               `json:"offset"`
	Limit    int               `json:"limit"`
}

// MapBookingToResponse converts a domain booking to an API response.
func MapBookingToResponse(booking *bookingDomain.Booking) BookingResponse {
	return BookingResponse{
		ID:                 booking.ID.String(),
		BookingReference:   booking.BookingReference,
		UserID:             booking.UserID.String(),
		BookingType:        string(booking.BookingType),
		TotalAmount:        booking.TotalAmount,
		Currency:           booking.Currency,
		Status:             string(booking.Status),
		SagaID:             booking.SagaID,
		SagaState:          string(booking.SagaState),
		ConfirmationNumber: booking.ConfirmationNumber,
		CancellationReason: booking.CancellationReason,
		CreatedAt:          booking.CreatedAt,
		UpdatedAt:          booking.UpdatedAt,
	}
}

// MapStatusToResponse converts a status view to an API response.
func MapStatusToResponse(view *bookingDomain.StatusView) BookingStatusResponse {
	return BookingStatusResponse{
		BookingID:   view.BookingID.String(),
		Status:      string(view.Status),
		SagaState:   string(view.SagaState),
		LastUpdated: view.LastUpdated,
	}
}

// MapBookingsToListResponse converts a page of bookings to an API response.
func MapBookingsToListResponse(bookings []*bookingDomain.Booking, offset, limit int) BookingListResponse {
	responses := make([]BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		responses = append(responses, MapBookingToResponse(booking))
	}
	return BookingListResponse{
		Bookings: responses,
		Offset:   offset,
		Limit:    limit,
	}
}
