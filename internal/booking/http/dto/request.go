// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	appValidation "github.com/pdh/booking/internal/validation"
)

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	UserID         string `json:"userId"`
	BookingType    string `json:"bookingType"`
	TotalAmount    int64  `json:"totalAmount"`
	Currency       string `json:"currency"`
	ProductDetails string `json:"productDetails"`
}

// Validate checks if the create booking request is valid.
func (r *CreateBookingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UserID, validation.Required, appValidation.UUID),
		validation.Field(&r.BookingType, validation.Required, appValidation.BookingType),
		validation.Field(&r.TotalAmount, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Currency, validation.Required, appValidation.Currency),
		validation.Field(&r.ProductDetails, validation.Length(0, 4096)),
	)
}

// CancelBookingRequest contains the parameters for cancelling a booking.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// Validate checks if the cancel booking request is valid.
func (r *CancelBookingRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Reason, validation.Length(0, 512)),
	)
}
