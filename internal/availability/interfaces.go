package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
)

// Repository defines the reservation scans backing availability checks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CountBlockingOverlaps(ctx context.Context, storageUnitID uuid.UUID, start, end time.Time, excludeReservationID *uuid.UUID) (int64, error)
	FindBlockingInRange(ctx context.Context, storageUnitID uuid.UUID, from, to time.Time) ([]models.Reservation, error)
	LockStorageUnit(ctx context.Context, storageUnitID uuid.UUID) (*models.StorageUnit, error)
}
