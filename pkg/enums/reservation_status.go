package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a customer reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusConfirmed,
	ReservationStatusCompleted,
	ReservationStatusCancelled,
	ReservationStatusExpired,
}

// String implements fmt.Stringer.
func (r ReservationStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReservationStatus.
func (r ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (r ReservationStatus) IsTerminal() bool {
	switch r {
	case ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

// HoldsStock reports whether reservations in this status still hold units.
func (r ReservationStatus) HoldsStock() bool {
	switch r {
	case ReservationStatusPending, ReservationStatusConfirmed:
		return true
	}
	return false
}

// ParseReservationStatus converts raw input into a ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
