package enums

import "fmt"

// ResourceKind names a plan-limited resource for quota checks.
type ResourceKind string

const (
	ResourceKindActiveReservations ResourceKind = "active_reservations"
	ResourceKindTotalReservations  ResourceKind = "total_reservations"
)

var validResourceKinds = []ResourceKind{
	ResourceKindActiveReservations,
	ResourceKindTotalReservations,
}

// String implements fmt.Stringer.
func (r ResourceKind) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ResourceKind.
func (r ResourceKind) IsValid() bool {
	for _, candidate := range validResourceKinds {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseResourceKind converts raw input into a ResourceKind.
func ParseResourceKind(value string) (ResourceKind, error) {
	for _, candidate := range validResourceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid resource kind %q", value)
}
