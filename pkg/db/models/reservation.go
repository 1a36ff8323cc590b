package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// Reservation is a guest's hold on a storage unit for a half-open time
// window [StartAt, EndAt). AmountMinor is quoted at creation and becomes
// immutable once the attached payment reaches a frozen status.
type Reservation struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	LocationID    uuid.UUID               `gorm:"column:location_id;type:uuid;not null;index"`
	StorageUnitID uuid.UUID               `gorm:"column:storage_unit_id;type:uuid;not null;index"`
	Status        enums.ReservationStatus `gorm:"column:status;type:reservation_status;not null;default:'reserved'"`
	StartAt       time.Time               `gorm:"column:start_at;not null"`
	EndAt         time.Time               `gorm:"column:end_at;not null"`
	ItemCount     int                     `gorm:"column:item_count;not null;default:1"`
	AmountMinor   int                     `gorm:"column:amount_minor;not null"`
	Currency      enums.Currency          `gorm:"column:currency;type:currency;not null"`
	GuestName     string                  `gorm:"column:guest_name;not null"`
	GuestPhone    *string                 `gorm:"column:guest_phone"`
	GuestEmail    *string                 `gorm:"column:guest_email"`
	RoomNumber    *string                 `gorm:"column:room_number"`
	ScanToken     string                  `gorm:"column:scan_token;not null;unique"`
	CreatedByID   *uuid.UUID              `gorm:"column:created_by_id;type:uuid"`

	HandoverByID     *uuid.UUID `gorm:"column:handover_by_id;type:uuid"`
	HandoverAt       *time.Time `gorm:"column:handover_at"`
	HandoverEvidence *string    `gorm:"column:handover_evidence"`
	ReturnByID       *uuid.UUID `gorm:"column:return_by_id;type:uuid"`
	ReturnAt         *time.Time `gorm:"column:return_at"`
	ReturnEvidence   *string    `gorm:"column:return_evidence"`
	ClosedAt         *time.Time `gorm:"column:closed_at"`
	CloseReason      *string    `gorm:"column:close_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Window returns the reservation's half-open interval.
func (r *Reservation) Window() (time.Time, time.Time) {
	return r.StartAt, r.EndAt
}
