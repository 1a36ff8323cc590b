package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an availability repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CountBlockingOverlaps counts blocking reservations whose half-open window
// intersects [start, end).
func (r *repository) CountBlockingOverlaps(ctx context.Context, storageUnitID uuid.UUID, start, end time.Time, excludeReservationID *uuid.UUID) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("storage_unit_id = ?", storageUnitID).
		Where("status IN ?", enums.BlockingReservationStatuses).
		Where("start_at < ? AND end_at > ?", end, start)

	if excludeReservationID != nil {
		query = query.Where("id <> ?", *excludeReservationID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) FindBlockingInRange(ctx context.Context, storageUnitID uuid.UUID, from, to time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("storage_unit_id = ?", storageUnitID).
		Where("status IN ?", enums.BlockingReservationStatuses).
		Where("start_at < ? AND end_at > ?", to, from).
		Order("start_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// LockStorageUnit takes a FOR UPDATE lock on the unit row so a concurrent
// create against the same unit serializes behind this transaction. SQLite
// (tests) has no row locks; its single-writer model covers the same ground.
func (r *repository) LockStorageUnit(ctx context.Context, storageUnitID uuid.UUID) (*models.StorageUnit, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var unit models.StorageUnit
	if err := query.Where("id = ?", storageUnitID).First(&unit).Error; err != nil {
		return nil, err
	}
	return &unit, nil
}
