package httputil_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/httputil"
)

func TestHandleErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "not found maps to 404",
			err:          apperrors.Wrap(apperrors.ErrNotFound, "booking abc"),
			expectedCode: http.StatusNotFound,
			expectedBody: "not_found",
		},
		{
			name:         "conflict maps to 409",
			err:          apperrors.ErrConflict,
			expectedCode: http.StatusConflict,
			expectedBody: "conflict",
		},
		{
			name:         "invalid input maps to 422",
			err:          apperrors.Wrap(apperrors.ErrInvalidInput, "bad currency"),
			expectedCode: http.StatusUnprocessableEntity,
			expectedBody: "invalid_input",
		},
		{
			name:         "invalid transition maps to 409",
			err:          apperrors.ErrInvalidTransition,
			expectedCode: http.StatusConflict,
			expectedBody: "invalid_state",
		},
		{
			name:         "completed saga maps to 409",
			err:          apperrors.ErrSagaCompleted,
			expectedCode: http.StatusConflict,
			expectedBody: "invalid_state",
		},
		{
			name:         "unknown error maps to 500 without details",
			err:          errors.New("pq: connection refused"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			httputil.HandleErrorGin(c, tt.err, nil)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}

	t.Run("internal errors never leak details", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		httputil.HandleErrorGin(c, errors.New("pq: relation bookings does not exist"), nil)

		assert.NotContains(t, w.Body.String(), "bookings")
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		httputil.HandleErrorGin(c, nil, nil)

		assert.Empty(t, w.Body.String())
	})
}

func TestHandleBadRequestGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	httputil.HandleBadRequestGin(c, errors.New("invalid offset parameter"), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad_request")
	assert.Contains(t, w.Body.String(), "invalid offset parameter")
}

func TestHandleValidationErrorGin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	httputil.HandleValidationErrorGin(c, errors.New("bookingType: must be one of FLIGHT, HOTEL, COMBO"), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
	assert.Contains(t, w.Body.String(), "bookingType")
}
