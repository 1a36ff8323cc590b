package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// Payment is the single ledger row per reservation. The unique index on
// reservation_id is the concurrency backstop: two racing creates collapse
// onto one row via the unique violation, never a duplicate.
type Payment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID          uuid.UUID             `gorm:"column:tenant_id;type:uuid;not null;index"`
	ReservationID     *uuid.UUID            `gorm:"column:reservation_id;type:uuid;uniqueIndex:idx_payments_reservation_id"`
	StorageUnitID     *uuid.UUID            `gorm:"column:storage_unit_id;type:uuid"`
	Provider          enums.PaymentProvider `gorm:"column:provider;type:payment_provider;not null"`
	Mode              enums.PaymentMode     `gorm:"column:mode;type:payment_mode;not null;default:'test'"`
	ProviderSessionID string                `gorm:"column:provider_session_id;not null;unique"`
	Status            enums.PaymentStatus   `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	AmountMinor       int                   `gorm:"column:amount_minor;not null"`
	Currency          enums.Currency        `gorm:"column:currency;type:currency;not null"`
	PaidAt            *time.Time            `gorm:"column:paid_at"`
	FailureReason     *string               `gorm:"column:failure_reason"`
	Metadata          json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
