package domain

import (
	"time"

	"github.com/google/uuid"
)

// StateLog is an append-only audit record of one saga transition. It is never
// updated or deleted and is not consulted for control flow.
type StateLog struct {
	ID          int64
	SagaID      string
	BookingID   uuid.UUID
	FromState   *State
	ToState     State
	Reason      string
	TriggeredBy string
	DurationMs  int64
	CreatedAt   time.Time
}

// NewStateLog creates a transition log entry. from is nil for the initial
// transition into BOOKING_INITIATED; durationMs is the time spent in the
// previous state.
func NewStateLog(saga *Instance, from *State, to State, reason, triggeredBy string, durationMs int64) *StateLog {
	return &StateLog{
		SagaID:      saga.SagaID,
		BookingID:   saga.BookingID,
		FromState:   from,
		ToState:     to,
		Reason:      reason,
		TriggeredBy: triggeredBy,
		DurationMs:  durationMs,
		CreatedAt:   time.Now().UTC(),
	}
}
