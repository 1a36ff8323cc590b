package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
)

// Repository defines persistence operations for price rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCandidateRules(ctx context.Context, tenantID uuid.UUID, locationID, storageUnitID *uuid.UUID) ([]models.PriceRule, error)
	FindRuleByID(ctx context.Context, id uuid.UUID) (*models.PriceRule, error)
	CreateRule(ctx context.Context, rule *models.PriceRule) (*models.PriceRule, error)
	DeactivateRule(ctx context.Context, id uuid.UUID) error
}
