package settlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

// ListFilters narrows settlement listings.
type ListFilters struct {
	Status *string
	From   *time.Time
	To     *time.Time
}

// Repository defines persistence operations for settlements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, settlement *models.Settlement) (*models.Settlement, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Settlement, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Settlement, string, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SumByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*TenantTotals, error)
}

// TenantTotals aggregates settled money for a tenant over a range.
type TenantTotals struct {
	TotalMinor      int64
	PayoutMinor     int64
	CommissionMinor int64
	Count           int64
}
