// Package domain defines the saga state machine, instances and commands used
// to coordinate a booking across flight, hotel and payment services.
package domain

// State represents a saga orchestration state.
type State string

// Saga states. The forward path runs top to bottom; the compensating states
// form the failure branch. BookingCompleted, BookingCancelled and
// BookingFailed are terminal.
const (
	StateBookingInitiated         State = "BOOKING_INITIATED"
	StateFlightReservationPending State = "FLIGHT_RESERVATION_PENDING"
	StateFlightReserved           State = "FLIGHT_RESERVED"
	StateHotelReservationPending  State = "HOTEL_RESERVATION_PENDING"
	StateHotelReserved            State = "HOTEL_RESERVED"
	StatePaymentPending           State = "PAYMENT_PENDING"
	StatePaymentCompleted         State = "PAYMENT_COMPLETED"
	StateBookingCompleted         State = "BOOKING_COMPLETED"
	StateCompensatingPayment      State = "COMPENSATING_PAYMENT"
	StateCompensatingHotel        State = "COMPENSATING_HOTEL"
	StateCompensatingFlight       State = "COMPENSATING_FLIGHT"
	StateBookingCancelled         State = "BOOKING_CANCELLED"
	StateBookingFailed            State = "BOOKING_FAILED"
)

// validTransitions is the saga state graph. A transition not listed here is
// rejected, which keeps the SagaStateLog a valid path by construction.
var validTransitions = map[State][]State{
	StateBookingInitiated: {
		StateFlightReservationPending,
		StateHotelReservationPending,
		StatePaymentPending,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateFlightReservationPending: {
		StateFlightReserved,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateFlightReserved: {
		StateHotelReservationPending,
		StatePaymentPending,
		StateCompensatingFlight,
		StateBookingFailed,
	},
	StateHotelReservationPending: {
		StateHotelReserved,
		StateCompensatingFlight,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateHotelReserved: {
		StatePaymentPending,
		StateCompensatingHotel,
		StateBookingFailed,
	},
	StatePaymentPending: {
		StatePaymentCompleted,
		StateCompensatingHotel,
		StateCompensatingFlight,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StatePaymentCompleted: {
		StateBookingCompleted,
		StateCompensatingPayment,
		StateBookingFailed,
	},
	StateCompensatingPayment: {
		StateCompensatingHotel,
		StateCompensatingFlight,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateCompensatingHotel: {
		StateCompensatingFlight,
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateCompensatingFlight: {
		StateBookingCancelled,
		StateBookingFailed,
	},
	StateBookingCompleted: {},
	StateBookingCancelled: {},
	StateBookingFailed:    {},
}

// IsTerminal reports whether the state ends the saga.
func (s State) IsTerminal() bool {
	switch s {
	case StateBookingCompleted, StateBookingCancelled, StateBookingFailed:
		return true
	}
	return false
}

// IsCompensating reports whether the state is part of the failure branch.
func (s State) IsCompensating() bool {
	switch s {
	case StateCompensatingPayment, StateCompensatingHotel, StateCompensatingFlight:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to target is a valid edge in
// the state graph.
func (s State) CanTransition(target State) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Step identifies a forward saga step that may later need compensation.
type Step string

// Forward steps in execution order.
const (
	StepFlight  Step = "flight"
	StepHotel   Step = "hotel"
	StepPayment Step = "payment"
)

// CompletedSteps returns the forward steps already completed when the saga is
// in the given state, in completion order. Compensation walks this slice in
// reverse.
func CompletedSteps(s State, bookingType BookingType) []Step {
	var steps []Step
	switch s {
	case StateFlightReserved, StateHotelReservationPending:
		steps = []Step{StepFlight}
	case StateHotelReserved:
		if bookingType == BookingTypeCombo {
			steps = []Step{StepFlight, StepHotel}
		} else {
			steps = []Step{StepHotel}
		}
	case StatePaymentPending:
		steps = stepsBeforePayment(bookingType)
	case StatePaymentCompleted, StateBookingCompleted:
		steps = append(stepsBeforePayment(bookingType), StepPayment)
	}
	return steps
}

func stepsBeforePayment(bookingType BookingType) []Step {
	switch bookingType {
	case BookingTypeFlight:
		return []Step{StepFlight}
	case BookingTypeHotel:
		return []Step{StepHotel}
	case BookingTypeCombo:
		return []Step{StepFlight, StepHotel}
	}
	return nil
}

// CompensatingState returns the saga state entered while compensating the
// given step.
func CompensatingState(step Step) State {
	switch step {
	case StepPayment:
		return StateCompensatingPayment
	case StepHotel:
		return StateCompensatingHotel
	default:
		return StateCompensatingFlight
	}
}
