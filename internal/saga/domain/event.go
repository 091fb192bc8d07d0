package domain

import (
	"encoding/json"

	"github.com/google/uuid"

	apperrors "github.com/pdh/booking/internal/errors"
)

// EventKind is the closed set of domain event kinds the orchestrator reacts
// to. Anything else parses as EventUnknown and is handled once, centrally.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventFlightReserved
	EventFlightReservationFailed
	EventFlightReservationCancelled
	EventHotelReserved
	EventHotelReservationFailed
	EventHotelReservationCancelled
	EventPaymentProcessed
	EventPaymentFailed
	EventPaymentRefunded
	EventPaymentCancelled
	EventCancelBookingRequested
)

// eventKinds maps wire event types to kinds.
var eventKinds = map[string]EventKind{
	"FlightReserved":             EventFlightReserved,
	"FlightReservationFailed":    EventFlightReservationFailed,
	"FlightReservationCancelled": EventFlightReservationCancelled,
	"HotelReserved":              EventHotelReserved,
	"HotelReservationFailed":     EventHotelReservationFailed,
	"HotelReservationCancelled":  EventHotelReservationCancelled,
	"PaymentProcessed":           EventPaymentProcessed,
	"PaymentFailed":              EventPaymentFailed,
	"PaymentRefunded":            EventPaymentRefunded,
	"PaymentCancelled":           EventPaymentCancelled,
	"CancelBookingRequested":     EventCancelBookingRequested,
}

// ParseEventKind resolves a wire event type to its kind.
func ParseEventKind(eventType string) EventKind {
	return eventKinds[eventType]
}

// IsFailure reports whether the event signals a failed forward step and
// should drive the saga into compensation.
func (k EventKind) IsFailure() bool {
	switch k {
	case EventFlightReservationFailed, EventHotelReservationFailed, EventPaymentFailed:
		return true
	}
	return false
}

// IsCompensationAck reports whether the event acknowledges a completed
// compensating action.
func (k EventKind) IsCompensationAck() bool {
	switch k {
	case EventFlightReservationCancelled, EventHotelReservationCancelled,
		EventPaymentRefunded, EventPaymentCancelled:
		return true
	}
	return false
}

// FailedStep returns the forward step a failure event belongs to.
func (k EventKind) FailedStep() Step {
	switch k {
	case EventHotelReservationFailed:
		return StepHotel
	case EventPaymentFailed:
		return StepPayment
	default:
		return StepFlight
	}
}

// CompensatedStep returns the forward step a compensation ack belongs to.
func (k EventKind) CompensatedStep() Step {
	switch k {
	case EventHotelReservationCancelled:
		return StepHotel
	case EventPaymentRefunded, EventPaymentCancelled:
		return StepPayment
	default:
		return StepFlight
	}
}

// Event is a domain event received by the orchestrator.
type Event struct {
	Kind      EventKind
	EventID   string
	EventType string
	BookingID uuid.UUID
	SagaID    string
	Reason    string
	Payload   json.RawMessage
}

// eventEnvelope is the minimal wire shape the orchestrator needs.
type eventEnvelope struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	BookingID string `json:"bookingId"`
	SagaID    string `json:"sagaId"`
	Reason    string `json:"reason"`
}

// ParseEvent decodes a domain event from its wire payload. A missing or
// invalid bookingId fails parsing: the orchestrator cannot correlate the
// event to a saga without it.
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "malformed event payload")
	}
	if env.EventType == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "missing eventType")
	}

	bookingID, err := uuid.Parse(env.BookingID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "missing or invalid bookingId")
	}

	return &Event{
		Kind:      ParseEventKind(env.EventType),
		EventID:   env.EventID,
		EventType: env.EventType,
		BookingID: bookingID,
		SagaID:    env.SagaID,
		Reason:    env.Reason,
		Payload:   payload,
	}, nil
}
