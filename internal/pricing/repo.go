package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a price rule repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCandidateRules(ctx context.Context, tenantID uuid.UUID, locationID, storageUnitID *uuid.UUID) ([]models.PriceRule, error) {
	scopes := r.db.
		Where("scope = ?", enums.PriceRuleScopeGlobal).
		Or("scope = ? AND tenant_id = ?", enums.PriceRuleScopeTenant, tenantID)
	if locationID != nil {
		scopes = scopes.Or("scope = ? AND location_id = ?", enums.PriceRuleScopeLocation, *locationID)
	}
	if storageUnitID != nil {
		scopes = scopes.Or("scope = ? AND storage_unit_id = ?", enums.PriceRuleScopeStorage, *storageUnitID)
	}

	var rules []models.PriceRule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(scopes).
		Order("priority DESC, created_at DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) FindRuleByID(ctx context.Context, id uuid.UUID) (*models.PriceRule, error) {
	var rule models.PriceRule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) CreateRule(ctx context.Context, rule *models.PriceRule) (*models.PriceRule, error) {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (r *repository) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceRule{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
