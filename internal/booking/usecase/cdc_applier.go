package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pdh/booking/internal/booking/domain"
	"github.com/pdh/booking/internal/cdc"
	"github.com/pdh/booking/internal/database"
	apperrors "github.com/pdh/booking/internal/errors"
	sagaDomain "github.com/pdh/booking/internal/saga/domain"
)

// bookingChangeRecord is the row image carried by booking change-log
// envelopes.
type bookingChangeRecord struct {
	ID                 string    `json:"id"`
	BookingReference   string    `json:"bookingReference"`
	UserID             string    `json:"userId"`
	BookingType        string    `json:"bookingType"`
	TotalAmount        int64     `json:"totalAmount"`
	Currency           string    `json:"currency"`
	Status             string    `json:"status"`
	SagaID             string    `json:"sagaId"`
	SagaState          string    `json:"sagaState"`
	ProductDetails     string    `json:"productDetails"`
	ConfirmationNumber *string   `json:"confirmationNumber"`
	CancellationReason *string   `json:"cancellationReason"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

var knownStatuses = map[domain.Status]struct{}{
	domain.StatusPending:           {},
	domain.StatusValidationPending: {},
	domain.StatusValidationFailed:  {},
	domain.StatusConfirmed:         {},
	domain.StatusCancelled:         {},
	domain.StatusFailed:            {},
}

// ChangeLogApplier mirrors booking rows from the change log into the local
// store. Applying the same record twice leaves the store unchanged, so the
// consumer can replay from any committed offset.
type ChangeLogApplier struct {
	txManager   database.TxManager
	bookingRepo BookingRepository
	logger      *slog.Logger
}

// NewChangeLogApplier creates a new ChangeLogApplier.
func NewChangeLogApplier(
	txManager database.TxManager,
	bookingRepo BookingRepository,
	logger *slog.Logger,
) *ChangeLogApplier {
	return &ChangeLogApplier{
		txManager:   txManager,
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

var _ cdc.Handler = (*ChangeLogApplier)(nil)

// HandleCreate inserts the booking unless it already exists.
func (a *ChangeLogApplier) HandleCreate(ctx context.Context, envelope *cdc.Envelope) error {
	incoming, ok := a.decode(envelope)
	if !ok {
		return nil
	}

	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		_, err := a.bookingRepo.GetByID(ctx, incoming.ID.String())
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return a.bookingRepo.Create(ctx, incoming)
	})
}

// HandleUpdate moves the stored booking to the state the record describes.
// A record describing the state the store already holds is skipped; a record
// for an unseen booking is inserted so replays starting mid-stream converge.
func (a *ChangeLogApplier) HandleUpdate(ctx context.Context, envelope *cdc.Envelope) error {
	incoming, ok := a.decode(envelope)
	if !ok {
		return nil
	}

	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := a.bookingRepo.GetByID(ctx, incoming.ID.String())
		if errors.Is(err, apperrors.ErrNotFound) {
			return a.bookingRepo.Create(ctx, incoming)
		}
		if err != nil {
			return err
		}

		if existing.Status == incoming.Status && existing.SagaState == incoming.SagaState {
			return nil
		}

		existing.Status = incoming.Status
		existing.SagaState = incoming.SagaState
		existing.ConfirmationNumber = incoming.ConfirmationNumber
		existing.CancellationReason = incoming.CancellationReason
		existing.UpdatedAt = time.Now().UTC()
		return a.bookingRepo.Update(ctx, existing)
	})
}

// HandleDelete soft-cancels the booking; local rows are never hard-deleted.
func (a *ChangeLogApplier) HandleDelete(ctx context.Context, envelope *cdc.Envelope) error {
	incoming, ok := a.decode(envelope)
	if !ok {
		return nil
	}

	return a.txManager.WithTx(ctx, func(ctx context.Context) error {
		existing, err := a.bookingRepo.GetByID(ctx, incoming.ID.String())
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if existing.Status == domain.StatusCancelled || existing.Status == domain.StatusFailed {
			return nil
		}

		existing.Cancel(domain.StatusCancelled, "removed from booking change log")
		return a.bookingRepo.Update(ctx, existing)
	})
}

// decode turns a change record into a booking. Records that can never apply
// are logged and dropped so they do not stall the change stream.
func (a *ChangeLogApplier) decode(envelope *cdc.Envelope) (*domain.Booking, bool) {
	var record bookingChangeRecord
	if err := json.Unmarshal(envelope.Payload, &record); err != nil {
		a.logger.Warn("skipping undecodable booking change record",
			slog.String("key", envelope.Key),
			slog.Any("error", err),
		)
		return nil, false
	}
	if record.ID == "" {
		record.ID = envelope.Key
	}

	id, err := uuid.Parse(record.ID)
	if err != nil {
		a.logger.Warn("skipping booking change record with invalid id",
			slog.String("key", envelope.Key),
			slog.Any("error", err),
		)
		return nil, false
	}
	userID, err := uuid.Parse(record.UserID)
	if err != nil {
		a.logger.Warn("skipping booking change record with invalid user id",
			slog.String("booking_id", record.ID),
			slog.Any("error", err),
		)
		return nil, false
	}

	status := domain.Status(record.Status)
	if _, ok := knownStatuses[status]; !ok {
		a.logger.Warn("skipping booking change record with unknown status",
			slog.String("booking_id", record.ID),
			slog.String("status", record.Status),
		)
		return nil, false
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	return &domain.Booking{
		ID:                 id,
		BookingReference:   record.BookingReference,
		UserID:             userID,
		BookingType:        sagaDomain.BookingType(record.BookingType),
		TotalAmount:        record.TotalAmount,
		Currency:           record.Currency,
		Status:             status,
		SagaID:             record.SagaID,
		SagaState:          sagaDomain.State(record.SagaState),
		ProductDetails:     record.ProductDetails,
		ConfirmationNumber: record.ConfirmationNumber,
		CancellationReason: record.CancellationReason,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}, true
}
