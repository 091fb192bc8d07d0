package dto

import (
	"github.com/pdh/booking/internal/booking/usecase"
)

// ToCreateBookingInput converts a create booking request to use case input.
func ToCreateBookingInput(req CreateBookingRequest) usecase.CreateBookingInput {
	return usecase.CreateBookingInput{
		UserID:         req.UserID,
		BookingType:    req.BookingType,
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
		ProductDetails: req.ProductDetails,
	}
}
