package reservations

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

// NewRepository builds a reservations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error) {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return nil, err
	}
	return reservation, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindByScanToken(ctx context.Context, token string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).Where("scan_token = ?", token).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Reservation, string, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC")

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.StorageUnitID != nil {
		query = query.Where("storage_unit_id = ?", *filters.StorageUnitID)
	}
	if filters.LocationID != nil {
		query = query.Where("location_id = ?", *filters.LocationID)
	}
	if filters.From != nil {
		query = query.Where("end_at > ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("start_at < ?", *filters.To)
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

	var reservations []models.Reservation
	if err := query.Limit(pagination.LimitWithBuffer(params.Limit)).Find(&reservations).Error; err != nil {
		return nil, "", err
	}

	page, next := pagination.TrimPage(reservations, params.Limit, func(r models.Reservation) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return page, next, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStorageUnitStatus(ctx context.Context, storageUnitID uuid.UUID, status enums.StorageUnitStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.StorageUnit{}).
		Where("id = ?", storageUnitID).
		Update("status", status).Error
}

// HasOtherActive reports whether a different reservation currently holds the
// unit in active status.
func (r *repository) HasOtherActive(ctx context.Context, storageUnitID, excludeReservationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("storage_unit_id = ?", storageUnitID).
		Where("status = ?", enums.ReservationStatusActive).
		Where("id <> ?", excludeReservationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) FindOverdueReserved(ctx context.Context, startedBefore time.Time, limit int) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.ReservationStatusReserved).
		Where("start_at < ?", startedBefore).
		Where("handover_at IS NULL").
		Order("start_at ASC").
		Limit(limit).
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}
