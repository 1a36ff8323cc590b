package reservations

import (
	"time"

	"github.com/google/uuid"
)

// CreateInput carries everything needed to book a storage unit.
type CreateInput struct {
	TenantID      uuid.UUID
	StorageUnitID uuid.UUID
	Start         time.Time
	End           time.Time
	ItemCount     int
	GuestName     string
	GuestPhone    *string
	GuestEmail    *string
	RoomNumber    *string
	ActorID       *uuid.UUID
}

// HandoverInput records luggage being received from the guest. TenantID
// scopes the lookup to the caller's tenant; the zero value is a system
// caller and skips the scope check.
type HandoverInput struct {
	ReservationID uuid.UUID
	TenantID      uuid.UUID
	ActorID       *uuid.UUID
	Evidence      *string
}

// ReturnInput records luggage being handed back to the guest.
type ReturnInput struct {
	ReservationID uuid.UUID
	TenantID      uuid.UUID
	ActorID       *uuid.UUID
	Evidence      *string
}

// ExtendInput pushes a reservation's end forward.
type ExtendInput struct {
	ReservationID uuid.UUID
	TenantID      uuid.UUID
	NewEnd        time.Time
	ActorID       *uuid.UUID
}

// CancelInput ends a reservation before completion.
type CancelInput struct {
	ReservationID uuid.UUID
	TenantID      uuid.UUID
	ActorID       *uuid.UUID
	Reason        *string
}
