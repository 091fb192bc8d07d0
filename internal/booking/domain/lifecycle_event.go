package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	outboxDomain "github.com/pdh/booking/internal/outbox/domain"
)

// Lifecycle event types published on the booking events topic. The service
// consumes these back off the broker to verify its own writes.
const (
	EventTypeBookingCreated   = "BookingCreated"
	EventTypeBookingConfirmed = "BookingConfirmed"
	EventTypeBookingCancelled = "BookingCancelled"
	EventTypeBookingFailed    = "BookingFailed"
)

// LifecycleEvent is the payload of a booking lifecycle event.
type LifecycleEvent struct {
	EventID     uuid.UUID `json:"eventId"`
	EventType   string    `json:"eventType"`
	AggregateID string    `json:"aggregateId"`
	BookingID   uuid.UUID `json:"bookingId"`
	UserID      uuid.UUID `json:"userId"`
	SagaID      string    `json:"sagaId"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLifecycleOutboxEvent builds the outbox event for a booking lifecycle
// change. The payload's eventId and the outbox row id are the same value so
// the self-event consumer can mark the originating row verified.
func NewLifecycleOutboxEvent(eventType string, booking *Booking, topic string) (*outboxDomain.Event, error) {
	lifecycle := LifecycleEvent{
		EventID:     uuid.Must(uuid.NewV7()),
		EventType:   eventType,
		AggregateID: booking.ID.String(),
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		SagaID:      booking.SagaID,
		Status:      booking.Status,
		Timestamp:   time.Now().UTC(),
	}

	payload, err := json.Marshal(lifecycle)
	if err != nil {
		return nil, err
	}

	event := outboxDomain.NewBookingEvent(eventType, booking.ID, string(payload), topic)
	event.ID = lifecycle.EventID
	return event, nil
}
