package settlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed settlements repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, settlement *models.Settlement) (*models.Settlement, error) {
	if err := r.db.WithContext(ctx).Create(settlement).Error; err != nil {
		return nil, err
	}
	return settlement, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*models.Settlement, error) {
	var settlement models.Settlement
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&settlement).Error; err != nil {
		return nil, err
	}
	return &settlement, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Settlement, string, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC")

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at < ?", *filters.To)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var settlements []models.Settlement
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&settlements).Error; err != nil {
		return nil, "", err
	}

	page, next := pagination.TrimPage(settlements, params.Limit, func(s models.Settlement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return page, next, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SumByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*TenantTotals, error) {
	var totals TenantTotals
	err := r.db.WithContext(ctx).
		Model(&models.Settlement{}).
		Select(
			"COALESCE(SUM(total_amount_minor), 0) AS total_minor, " +
				"COALESCE(SUM(tenant_payout_minor), 0) AS payout_minor, " +
				"COALESCE(SUM(commission_minor), 0) AS commission_minor, " +
				"COUNT(*) AS count",
		).
		Where("tenant_id = ? AND status = ?", tenantID, enums.SettlementStatusSettled).
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
