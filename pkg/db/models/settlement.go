package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// Settlement splits a paid amount between tenant payout and platform
// commission. CommissionRatePercent is snapshotted from the tenant at
// calculation time so later tenant edits never move historical money.
type Settlement struct {
	ID                    uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID             uuid.UUID              `gorm:"column:payment_id;type:uuid;not null;unique"`
	ReservationID         *uuid.UUID             `gorm:"column:reservation_id;type:uuid"`
	TenantID              uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index"`
	TotalAmountMinor      int                    `gorm:"column:total_amount_minor;not null"`
	TenantPayoutMinor     int                    `gorm:"column:tenant_payout_minor;not null"`
	CommissionMinor       int                    `gorm:"column:commission_minor;not null"`
	CommissionRatePercent decimal.Decimal        `gorm:"column:commission_rate_percent;type:numeric(5,2);not null"`
	Currency              enums.Currency         `gorm:"column:currency;type:currency;not null"`
	Status                enums.SettlementStatus `gorm:"column:status;type:settlement_status;not null;default:'pending'"`
	SettledAt             *time.Time             `gorm:"column:settled_at"`
	CreatedAt             time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
