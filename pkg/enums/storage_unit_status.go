package enums

import "fmt"

// StorageUnitStatus is a fast-path hint for a unit's occupancy. The
// authoritative availability source is the reservation overlap scan.
type StorageUnitStatus string

const (
	StorageUnitStatusIdle     StorageUnitStatus = "idle"
	StorageUnitStatusOccupied StorageUnitStatus = "occupied"
	StorageUnitStatusFaulty   StorageUnitStatus = "faulty"
)

var validStorageUnitStatuses = []StorageUnitStatus{
	StorageUnitStatusIdle,
	StorageUnitStatusOccupied,
	StorageUnitStatusFaulty,
}

// String implements fmt.Stringer.
func (s StorageUnitStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StorageUnitStatus.
func (s StorageUnitStatus) IsValid() bool {
	for _, candidate := range validStorageUnitStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStorageUnitStatus converts raw input into a StorageUnitStatus.
func ParseStorageUnitStatus(value string) (StorageUnitStatus, error) {
	for _, candidate := range validStorageUnitStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid storage unit status %q", value)
}
