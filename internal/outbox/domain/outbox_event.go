// Package domain defines the core outbox domain entities and types.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Aggregate types published through the outbox.
const (
	AggregateTypeBooking = "Booking"
	AggregateTypeSaga    = "Saga"
	AggregateTypePayment = "Payment"
)

// Priority bounds. 1 is the highest priority and is honored before FIFO order.
const (
	PriorityHigh    = 1
	PriorityDefault = 5
	PriorityLow     = 10
)

// Event represents a row in the transactional outbox. A single record type
// covers all shapes: callers opt into retry, routing and expiry capabilities
// by populating the relevant optional fields.
type Event struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       string
	CreatedAt     time.Time

	// Relay processing state.
	Processed    bool
	ProcessedAt  *time.Time
	RetryCount   int
	MaxRetries   int
	NextRetryAt  *time.Time
	ErrorMessage *string

	// Routing capabilities (broker delivery).
	SagaID       *string
	Priority     int
	Topic        string
	PartitionKey string
	ExpiresAt    *time.Time

	// Self-event verification state, distinct from relay processing.
	SelfProcessed   bool
	SelfProcessedAt *time.Time
}

// NewEvent creates an outbox event with default priority and no expiry.
func NewEvent(eventType, aggregateType, aggregateID, payload string) *Event {
	return &Event{
		ID:            uuid.Must(uuid.NewV7()),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       payload,
		Priority:      PriorityDefault,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewBookingEvent creates a booking aggregate event routed to the given topic,
// partitioned by booking id so all events for one booking are ordered.
func NewBookingEvent(eventType string, bookingID uuid.UUID, payload, topic string) *Event {
	ev := NewEvent(eventType, AggregateTypeBooking, bookingID.String(), payload)
	ev.Topic = topic
	ev.PartitionKey = bookingID.String()
	ev.Priority = 3
	ev.SetExpiryFromNow(24 * time.Hour)
	return ev
}

// NewSagaCommandEvent creates a saga command event partitioned by saga id.
// Saga commands are high priority so compensations outrun regular traffic.
func NewSagaCommandEvent(eventType, sagaID string, payload, topic string) *Event {
	ev := NewEvent(eventType, AggregateTypeSaga, sagaID, payload)
	ev.SagaID = &sagaID
	ev.Topic = topic
	ev.PartitionKey = sagaID
	ev.Priority = PriorityHigh
	ev.SetExpiryFromNow(24 * time.Hour)
	return ev
}

// SetExpiryFromNow sets the event to expire after the given duration.
func (e *Event) SetExpiryFromNow(d time.Duration) {
	expires := time.Now().UTC().Add(d)
	e.ExpiresAt = &expires
}

// IsExpired reports whether the event is past its expiry. Expired events are
// never published or retried.
func (e *Event) IsExpired() bool {
	return e.ExpiresAt != nil && time.Now().UTC().After(*e.ExpiresAt)
}

// MarkProcessed records successful relay delivery.
func (e *Event) MarkProcessed() {
	now := time.Now().UTC()
	e.Processed = true
	e.ProcessedAt = &now
	e.ErrorMessage = nil
}

// MarkSelfProcessed records that the self-event consumer verified the effect.
func (e *Event) MarkSelfProcessed() {
	now := time.Now().UTC()
	e.SelfProcessed = true
	e.SelfProcessedAt = &now
}

// RecordFailure increments the retry count, stores the error, and schedules
// the next attempt with exponential backoff (2^retryCount minutes).
func (e *Event) RecordFailure(errMsg string) {
	e.RetryCount++
	e.ErrorMessage = &errMsg
	next := time.Now().UTC().Add(e.backoff())
	e.NextRetryAt = &next
}

// RetriesExhausted reports whether the event has hit its retry cap.
func (e *Event) RetriesExhausted() bool {
	return e.MaxRetries > 0 && e.RetryCount >= e.MaxRetries
}

func (e *Event) backoff() time.Duration {
	return time.Duration(math.Pow(2, float64(e.RetryCount))) * time.Minute
}
