package tenants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
)

// Repository defines persistence operations for tenant lookups and quota counts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	CountBlockingReservations(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountAllReservations(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
