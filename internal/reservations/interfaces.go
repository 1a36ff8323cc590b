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

// ListFilters narrows reservation listings.
type ListFilters struct {
	Status        *enums.ReservationStatus
	StorageUnitID *uuid.UUID
	LocationID    *uuid.UUID
	From          *time.Time
	To            *time.Time
}

// Repository defines persistence operations for reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, reservation *models.Reservation) (*models.Reservation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindByScanToken(ctx context.Context, token string) (*models.Reservation, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Reservation, string, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStorageUnitStatus(ctx context.Context, storageUnitID uuid.UUID, status enums.StorageUnitStatus) error
	HasOtherActive(ctx context.Context, storageUnitID, excludeReservationID uuid.UUID) (bool, error)
	FindOverdueReserved(ctx context.Context, startedBefore time.Time, limit int) ([]models.Reservation, error)
}
