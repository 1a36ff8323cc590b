package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

// PriceRule binds rates to a scope. Exactly the ID columns implied by Scope
// are set: a tenant-scoped rule carries TenantID only, a storage-scoped rule
// carries all three.
type PriceRule struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Scope         enums.PriceRuleScope `gorm:"column:scope;type:price_rule_scope;not null"`
	TenantID      *uuid.UUID           `gorm:"column:tenant_id;type:uuid;index"`
	LocationID    *uuid.UUID           `gorm:"column:location_id;type:uuid;index"`
	StorageUnitID *uuid.UUID           `gorm:"column:storage_unit_id;type:uuid;index"`

	PricingType        enums.PricingType `gorm:"column:pricing_type;type:pricing_type;not null;default:'hourly'"`
	HourlyRateMinor    int               `gorm:"column:hourly_rate_minor;not null;default:0"`
	DailyRateMinor     int               `gorm:"column:daily_rate_minor;not null;default:0"`
	WeeklyRateMinor    int               `gorm:"column:weekly_rate_minor;not null;default:0"`
	MonthlyRateMinor   int               `gorm:"column:monthly_rate_minor;not null;default:0"`
	MinimumChargeMinor int               `gorm:"column:minimum_charge_minor;not null;default:0"`
	Currency           enums.Currency    `gorm:"column:currency;type:currency;not null"`

	Priority  int       `gorm:"column:priority;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
