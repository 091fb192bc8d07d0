package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/pdh/booking/internal/errors"
)

// Instance is the persisted state of one saga, 1:1 with a booking attempt.
// Version is an optimistic concurrency token: two events for the same saga
// arriving concurrently cannot interleave their read-modify-write.
type Instance struct {
	SagaID             string
	BookingID          uuid.UUID
	CurrentState       State
	IsCompensating     bool
	CompensationReason *string
	Version            int
	StartedAt          time.Time
	LastUpdatedAt      time.Time
	CompletedAt        *time.Time
}

// NewInstance creates a saga instance in the initial state.
func NewInstance(bookingID uuid.UUID) *Instance {
	now := time.Now().UTC()
	return &Instance{
		SagaID:        uuid.Must(uuid.NewV7()).String(),
		BookingID:     bookingID,
		CurrentState:  StateBookingInitiated,
		StartedAt:     now,
		LastUpdatedAt: now,
	}
}

// Completed reports whether the saga has reached a terminal state.
func (i *Instance) Completed() bool {
	return i.CompletedAt != nil
}

// Transition moves the saga to the target state, validating the edge against
// the state graph. Terminal targets also stamp CompletedAt, after which the
// instance is immutable.
func (i *Instance) Transition(target State) error {
	if i.Completed() {
		return apperrors.ErrSagaCompleted
	}
	if !i.CurrentState.CanTransition(target) {
		return apperrors.Wrap(
			apperrors.ErrInvalidTransition,
			string(i.CurrentState)+" -> "+string(target),
		)
	}

	i.CurrentState = target
	i.LastUpdatedAt = time.Now().UTC()
	if target.IsCompensating() {
		i.IsCompensating = true
	}
	if target.IsTerminal() {
		now := time.Now().UTC()
		i.CompletedAt = &now
	}
	return nil
}

// BeginCompensation flags the saga as compensating and records the reason.
func (i *Instance) BeginCompensation(reason string) {
	i.IsCompensating = true
	i.CompensationReason = &reason
}

// StaleSince reports whether the saga is still running and has had no
// transition since the given instant. Used by the recovery sweep.
func (i *Instance) StaleSince(cutoff time.Time) bool {
	return !i.Completed() && i.LastUpdatedAt.Before(cutoff)
}
