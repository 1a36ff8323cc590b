package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// StorageUnit is a bookable locker or shelf slot. Availability is derived
// from overlapping reservations, not from Status; Status only tracks the
// physical state of the unit.
type StorageUnit struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID   uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null;index"`
	LocationID uuid.UUID               `gorm:"column:location_id;type:uuid;not null;index"`
	Code       string                  `gorm:"column:code;not null"`
	Capacity   int                     `gorm:"column:capacity;not null;default:1"`
	Status     enums.StorageUnitStatus `gorm:"column:status;type:storage_unit_status;not null;default:'idle'"`
	Notes      *string                 `gorm:"column:notes"`
	IsActive   bool                    `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
