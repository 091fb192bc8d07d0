package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/pdh/booking/internal/errors"
)

func TestUUID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{
			name:    "valid uuid",
			value:   "0196a7f0-66be-7e9c-a557-2f5ab4d40a4e",
			wantErr: false,
		},
		{
			name:    "empty string is skipped",
			value:   "",
			wantErr: false,
		},
		{
			name:    "malformed uuid",
			value:   "not-a-uuid",
			wantErr: true,
		},
		{
			name:    "truncated uuid",
			value:   "0196a7f0-66be-7e9c-a557",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UUID.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookingType(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{
			name:    "flight",
			value:   "FLIGHT",
			wantErr: false,
		},
		{
			name:    "hotel",
			value:   "HOTEL",
			wantErr: false,
		},
		{
			name:    "combo",
			value:   "COMBO",
			wantErr: false,
		},
		{
			name:    "lowercase is rejected",
			value:   "flight",
			wantErr: true,
		},
		{
			name:    "unknown type",
			value:   "CRUISE",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := BookingType.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{
			name:    "vnd",
			value:   "VND",
			wantErr: false,
		},
		{
			name:    "usd",
			value:   "USD",
			wantErr: false,
		},
		{
			name:    "lowercase is rejected",
			value:   "usd",
			wantErr: true,
		},
		{
			name:    "too long",
			value:   "DOLLAR",
			wantErr: true,
		},
		{
			name:    "digits are rejected",
			value:   "US1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Currency.Validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWrapValidationError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, WrapValidationError(nil))
	})

	t.Run("wraps as invalid input", func(t *testing.T) {
		err := WrapValidationError(errors.New("bookingType: must be one of FLIGHT, HOTEL, COMBO"))
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		assert.Contains(t, err.Error(), "bookingType")
	})
}
