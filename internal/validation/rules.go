// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/pdh/booking/internal/errors"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

var (
	// currencyRegex matches three-letter uppercase ISO 4217 currency codes
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// UUID validates that the value is a well-formed UUID string
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// BookingType validates that the value is one of the supported booking types
var BookingType = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_booking_type", "booking type must be a string")
	}
	if !sagaDomain.BookingType(s).Valid() {
		return validation.NewError(
			"validation_booking_type",
			"booking type must be one of FLIGHT, HOTEL, COMBO",
		)
	}
	return nil
})

// Currency validates a three-letter uppercase currency code
var Currency = validation.NewStringRuleWithError(
	func(s string) bool {
		return currencyRegex.MatchString(s)
	},
	validation.NewError("validation_currency", "must be a three-letter uppercase currency code"),
)
