package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Command actions sent from the orchestrator to participant services.
const (
	ActionReserveFlight           = "RESERVE_FLIGHT"
	ActionReserveHotel            = "RESERVE_HOTEL"
	ActionProcessPayment          = "PROCESS_PAYMENT"
	ActionCancelFlightReservation = "CANCEL_FLIGHT_RESERVATION"
	ActionCancelHotelReservation  = "CANCEL_HOTEL_RESERVATION"
	ActionRefundPayment           = "REFUND_PAYMENT"
)

// Command is the payload the orchestrator sends to a participant service.
// It travels through the outbox and is keyed by saga id for partition affinity.
type Command struct {
	SagaID        string            `json:"sagaId"`
	BookingID     uuid.UUID         `json:"bookingId"`
	UserID        uuid.UUID         `json:"userId"`
	Action        string            `json:"action"`
	BookingType   string            `json:"bookingType"`
	TotalAmount   int64             `json:"totalAmount"`
	Currency      string            `json:"currency"`
	CorrelationID string            `json:"correlationId"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewCommand creates a saga command with a fresh correlation id.
func NewCommand(sagaID string, bookingID, userID uuid.UUID, action string) *Command {
	return &Command{
		SagaID:        sagaID,
		BookingID:     bookingID,
		UserID:        userID,
		Action:        action,
		CorrelationID: uuid.Must(uuid.NewV7()).String(),
		Timestamp:     time.Now().UTC(),
		Metadata:      map[string]string{},
	}
}

// MarkAsCompensation tags the command as a compensating action.
func (c *Command) MarkAsCompensation(reason string) {
	c.Metadata["isCompensation"] = "true"
	if reason != "" {
		c.Metadata["reason"] = reason
	}
}

// IsCompensation reports whether the command undoes a previous step.
func (c *Command) IsCompensation() bool {
	switch c.Action {
	case ActionCancelFlightReservation, ActionCancelHotelReservation, ActionRefundPayment:
		return true
	}
	return false
}

// Marshal serializes the command for the outbox payload.
func (c *Command) Marshal() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// CompensationAction maps a forward step to the command that undoes it.
func CompensationAction(step Step) string {
	switch step {
	case StepPayment:
		return ActionRefundPayment
	case StepHotel:
		return ActionCancelHotelReservation
	default:
		return ActionCancelFlightReservation
	}
}

// ReserveAction maps a forward step to the command that executes it.
func ReserveAction(step Step) string {
	switch step {
	case StepPayment:
		return ActionProcessPayment
	case StepHotel:
		return ActionReserveHotel
	default:
		return ActionReserveFlight
	}
}
