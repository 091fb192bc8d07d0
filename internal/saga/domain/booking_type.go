package domain

// BookingType determines which forward steps the saga runs.
type BookingType string

const (
	BookingTypeFlight BookingType = "FLIGHT"
	BookingTypeHotel  BookingType = "HOTEL"
	BookingTypeCombo  BookingType = "COMBO"
)

// Valid reports whether the booking type is one of the known values.
func (t BookingType) Valid() bool {
	switch t {
	case BookingTypeFlight, BookingTypeHotel, BookingTypeCombo:
		return true
	}
	return false
}

// HasFlight reports whether the saga includes a flight reservation step.
func (t BookingType) HasFlight() bool {
	return t == BookingTypeFlight || t == BookingTypeCombo
}

// HasHotel reports whether the saga includes a hotel reservation step.
func (t BookingType) HasHotel() bool {
	return t == BookingTypeHotel || t == BookingTypeCombo
}
