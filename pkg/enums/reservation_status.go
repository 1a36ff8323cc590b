package enums

import "fmt"

// ReservationStatus tracks the lifecycle of a luggage reservation.
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusNoShow    ReservationStatus = "no_show"
	ReservationStatusLost      ReservationStatus = "lost"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusReserved,
	ReservationStatusActive,
	ReservationStatusCompleted,
	ReservationStatusCancelled,
	ReservationStatusNoShow,
	ReservationStatusLost,
}

// BlockingReservationStatuses are the statuses that count against availability.
// Terminal statuses never block a storage unit.
var BlockingReservationStatuses = []ReservationStatus{
	ReservationStatusReserved,
	ReservationStatusActive,
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

// IsTerminal reports whether the status admits no further transitions.
func (r ReservationStatus) IsTerminal() bool {
	switch r {
	case ReservationStatusCompleted, ReservationStatusCancelled, ReservationStatusNoShow, ReservationStatusLost:
		return true
	default:
		return false
	}
}

// IsBlocking reports whether the status holds the storage unit against
// overlapping reservations.
func (r ReservationStatus) IsBlocking() bool {
	for _, candidate := range BlockingReservationStatuses {
		if candidate == r {
			return true
		}
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
