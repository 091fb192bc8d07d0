// Package http provides HTTP handlers for booking operations.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdh/booking/internal/booking/http/dto"
	"github.com/pdh/booking/internal/booking/usecase"
	apperrors "github.com/pdh/booking/internal/errors"
	"github.com/pdh/booking/internal/httputil"
	customValidation "github.com/pdh/booking/internal/validation"
)

var errMissingUserID = apperrors.Wrap(apperrors.ErrInvalidInput, "user_id query parameter is required")

// BookingHandler handles HTTP requests for booking operations.
type BookingHandler struct {
	bookingUseCase usecase.BookingUseCase
	logger         *slog.Logger
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(bookingUseCase usecase.BookingUseCase, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		bookingUseCase: bookingUseCase,
		logger:         logger,
	}
}

// RegisterRoutes wires the booking routes onto the router.
func (h *BookingHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")
	v1.POST("/bookings", h.CreateHandler)
	v1.GET("/bookings", h.ListHandler)
	v1.POST("/bookings/:id/cancel", h.CancelHandler)
	v1.GET("/bookings/:id/status", h.StatusHandler)
}

// CreateHandler creates a booking and starts its saga.
// POST /v1/bookings
// Returns 202 Accepted: the booking is pending until the saga completes.
func (h *BookingHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateBookingRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	booking, err := h.bookingUseCase.CreateBooking(c.Request.Context(), dto.ToCreateBookingInput(req))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, dto.MapBookingToResponse(booking))
}

// CancelHandler requests cancellation of a booking.
// POST /v1/bookings/:id/cancel
// Returns 202 Accepted: compensation runs asynchronously.
func (h *BookingHandler) CancelHandler(c *gin.Context) {
	bookingID := c.Param("id")

	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	if err := h.bookingUseCase.CancelBooking(c.Request.Context(), bookingID, req.Reason); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "cancellation_requested"})
}

// StatusHandler returns the booking's current status and saga state.
// GET /v1/bookings/:id/status
func (h *BookingHandler) StatusHandler(c *gin.Context) {
	bookingID := c.Param("id")

	view, err := h.bookingUseCase.GetBookingStatus(c.Request.Context(), bookingID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(view))
}

// ListHandler returns a page of the user's bookings.
// GET /v1/bookings?user_id=...&offset=0&limit=50
func (h *BookingHandler) ListHandler(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		httputil.HandleBadRequestGin(c, errMissingUserID, h.logger)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	bookings, err := h.bookingUseCase.ListBookings(c.Request.Context(), userID, limit, offset)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapBookingsToListResponse(bookings, offset, limit))
}
