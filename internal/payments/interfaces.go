package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
)

// Repository defines persistence operations for payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByReservationID(ctx context.Context, reservationID uuid.UUID) (*models.Payment, error)
	FindByProviderSessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CancelPendingByReservation(ctx context.Context, reservationID uuid.UUID) error
	ListEligibleForSettlement(ctx context.Context, limit int) ([]models.Payment, error)
}
