package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// Tenant is a hotel or venue operating storage units. Commission and quota
// settings live here so pricing and settlement reads never chase a config blob.
type Tenant struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                  string                `gorm:"column:name;not null"`
	Slug                  string                `gorm:"column:slug;not null;unique"`
	CommissionRatePercent decimal.Decimal       `gorm:"column:commission_rate_percent;type:numeric(5,2);not null;default:0"`
	PaymentProvider       enums.PaymentProvider `gorm:"column:payment_provider;type:payment_provider;not null;default:'cash'"`
	PaymentMode           enums.PaymentMode     `gorm:"column:payment_mode;type:payment_mode;not null;default:'test'"`
	DefaultCurrency       enums.Currency        `gorm:"column:default_currency;type:currency;not null;default:'EUR'"`
	MaxActiveReservations int                   `gorm:"column:max_active_reservations;not null;default:0"`
	MaxTotalReservations  int                   `gorm:"column:max_total_reservations;not null;default:0"`
	IsActive              bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
