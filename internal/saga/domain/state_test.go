package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_CanTransition_HappyPath(t *testing.T) {
	path := []State{
		StateBookingInitiated,
		StateFlightReservationPending,
		StateFlightReserved,
		StateHotelReservationPending,
		StateHotelReserved,
		StatePaymentPending,
		StatePaymentCompleted,
		StateBookingCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, path[i].CanTransition(path[i+1]),
			"expected %s -> %s to be valid", path[i], path[i+1])
	}
}

func TestState_CanTransition_NoSkippingMandatorySteps(t *testing.T) {
	assert.False(t, StateFlightReservationPending.CanTransition(StatePaymentCompleted))
	assert.False(t, StateBookingInitiated.CanTransition(StateBookingCompleted))
	assert.False(t, StatePaymentPending.CanTransition(StateBookingCompleted))
}

func TestState_TerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	terminals := []State{StateBookingCompleted, StateBookingCancelled, StateBookingFailed}
	all := []State{
		StateBookingInitiated, StateFlightReservationPending, StateFlightReserved,
		StateHotelReservationPending, StateHotelReserved, StatePaymentPending,
		StatePaymentCompleted, StateBookingCompleted, StateCompensatingPayment,
		StateCompensatingHotel, StateCompensatingFlight, StateBookingCancelled,
		StateBookingFailed,
	}

	for _, terminal := range terminals {
		assert.True(t, terminal.IsTerminal())
		for _, target := range all {
			assert.False(t, terminal.CanTransition(target),
				"terminal state %s must not transition to %s", terminal, target)
		}
	}
}

func TestState_IsCompensating(t *testing.T) {
	assert.True(t, StateCompensatingFlight.IsCompensating())
	assert.True(t, StateCompensatingHotel.IsCompensating())
	assert.True(t, StateCompensatingPayment.IsCompensating())
	assert.False(t, StatePaymentPending.IsCompensating())
	assert.False(t, StateBookingCancelled.IsCompensating())
}

func TestCompletedSteps(t *testing.T) {
	tests := []struct {
		name        string
		state       State
		bookingType BookingType
		want        []Step
	}{
		{"nothing completed at start", StateBookingInitiated, BookingTypeCombo, nil},
		{"flight reserved", StateFlightReserved, BookingTypeCombo, []Step{StepFlight}},
		{"combo at payment", StatePaymentPending, BookingTypeCombo, []Step{StepFlight, StepHotel}},
		{"hotel only at payment", StatePaymentPending, BookingTypeHotel, []Step{StepHotel}},
		{"flight only at payment", StatePaymentPending, BookingTypeFlight, []Step{StepFlight}},
		{"combo payment completed", StatePaymentCompleted, BookingTypeCombo, []Step{StepFlight, StepHotel, StepPayment}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompletedSteps(tt.state, tt.bookingType))
		})
	}
}

func TestCompensatingState(t *testing.T) {
	assert.Equal(t, StateCompensatingFlight, CompensatingState(StepFlight))
	assert.Equal(t, StateCompensatingHotel, CompensatingState(StepHotel))
	assert.Equal(t, StateCompensatingPayment, CompensatingState(StepPayment))
}
