package settlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	"github.com/stowpoint/stowpoint-backend/pkg/db"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/metrics"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

const paymentUniqueConstraint = "settlements_payment_id"

type paymentLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListEligibleForSettlement(ctx context.Context, limit int) ([]models.Payment, error)
}

type tenantConfigReader interface {
	Config(ctx context.Context, tenantID uuid.UUID) (*tenants.Config, error)
}

type auditor interface {
	RecordBestEffort(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service splits paid amounts into tenant payout and platform commission.
type Service interface {
	// Calculate creates the settlement for a payment, or returns the
	// existing one untouched. Recalculation never moves recorded money.
	// A non-zero tenantID scopes the lookup to that tenant; the zero
	// value is a system caller and skips the check.
	Calculate(ctx context.Context, paymentID, tenantID uuid.UUID) (*models.Settlement, error)
	Complete(ctx context.Context, settlementID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Settlement, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Settlement, error)
	GetByPayment(ctx context.Context, paymentID, tenantID uuid.UUID) (*models.Settlement, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Settlement, string, error)
	TenantTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*TenantTotals, error)
	// SweepEligible settles every paid payment that has no settlement
	// yet, up to limit. Returns how many settlements were created.
	SweepEligible(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo     Repository
	payments paymentLoader
	tenants  tenantConfigReader
	auditor  auditor
	metrics  *metrics.ReservationMetrics
	logg     *logger.Logger
}

// NewService builds the settlement calculator.
func NewService(
	repo Repository,
	payments paymentLoader,
	tenantSvc tenantConfigReader,
	auditSvc auditor,
	reservationMetrics *metrics.ReservationMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlements repository required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment loader required")
	}
	if tenantSvc == nil {
		return nil, fmt.Errorf("tenants service required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		payments: payments,
		tenants:  tenantSvc,
		auditor:  auditSvc,
		metrics:  reservationMetrics,
		logg:     logg,
	}, nil
}

func (s *service) Calculate(ctx context.Context, paymentID, tenantID uuid.UUID) (*models.Settlement, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	if existing, err := s.repo.FindByPaymentID(ctx, paymentID); err == nil {
		if tenantID != uuid.Nil && existing.TenantID != tenantID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading settlement")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment")
	}
	if tenantID != uuid.Nil && payment.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if !payment.Status.SettlementEligible() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot settle a payment in status %q", payment.Status))
	}

	cfg, err := s.tenants.Config(ctx, payment.TenantID)
	if err != nil {
		return nil, err
	}

	commission, payout := splitAmount(payment.AmountMinor, cfg.CommissionRatePercent)
	settlement := &models.Settlement{
		ID:                    uuid.New(),
		PaymentID:             payment.ID,
		ReservationID:         payment.ReservationID,
		TenantID:              payment.TenantID,
		TotalAmountMinor:      payment.AmountMinor,
		TenantPayoutMinor:     payout,
		CommissionMinor:       commission,
		CommissionRatePercent: cfg.CommissionRatePercent,
		Currency:              payment.Currency,
		Status:                enums.SettlementStatusPending,
	}

	if _, err := s.repo.Create(ctx, settlement); err != nil {
		// A racing calculation got there first; the split is already
		// recorded, return it as-is.
		if db.IsUniqueViolation(err, paymentUniqueConstraint) {
			existing, findErr := s.repo.FindByPaymentID(ctx, paymentID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "loading settlement after duplicate create")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting settlement")
	}

	s.metrics.IncSettlement(enums.SettlementStatusPending.String())
	s.auditor.RecordBestEffort(ctx, nil, audit.Entry{
		TenantID: settlement.TenantID,
		Action:   "settlement.calculated",
		Entity:   audit.EntitySettlement,
		EntityID: settlement.ID,
		Meta: map[string]any{
			"payment_id":       payment.ID,
			"total_minor":      settlement.TotalAmountMinor,
			"payout_minor":     settlement.TenantPayoutMinor,
			"commission_minor": settlement.CommissionMinor,
			"rate_percent":     cfg.CommissionRatePercent.String(),
		},
	})
	return settlement, nil
}

func (s *service) Complete(ctx context.Context, settlementID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Settlement, error) {
	settlement, err := s.GetByID(ctx, settlementID, tenantID)
	if err != nil {
		return nil, err
	}
	if settlement.Status == enums.SettlementStatusSettled {
		return settlement, nil
	}
	if settlement.Status != enums.SettlementStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot complete a settlement in status %q", settlement.Status))
	}

	now := time.Now().UTC()
	if err := s.repo.UpdateFields(ctx, settlement.ID, map[string]any{
		"status":     enums.SettlementStatusSettled,
		"settled_at": now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "completing settlement")
	}
	settlement.Status = enums.SettlementStatusSettled
	settlement.SettledAt = &now

	s.metrics.IncSettlement(enums.SettlementStatusSettled.String())
	s.auditor.RecordBestEffort(ctx, nil, audit.Entry{
		TenantID: settlement.TenantID,
		ActorID:  actorID,
		Action:   "settlement.completed",
		Entity:   audit.EntitySettlement,
		EntityID: settlement.ID,
		Meta: map[string]any{
			"payout_minor": settlement.TenantPayoutMinor,
		},
	})
	return settlement, nil
}

func (s *service) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Settlement, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "settlement id required")
	}
	settlement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading settlement")
	}
	if tenantID != uuid.Nil && settlement.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
	}
	return settlement, nil
}

func (s *service) GetByPayment(ctx context.Context, paymentID, tenantID uuid.UUID) (*models.Settlement, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	settlement, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading settlement")
	}
	if tenantID != uuid.Nil && settlement.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
	}
	return settlement, nil
}

func (s *service) ListByTenant(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Settlement, string, error) {
	if tenantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	settlements, next, err := s.repo.ListByTenant(ctx, tenantID, params, filters)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing settlements")
	}
	return settlements, next, nil
}

func (s *service) TenantTotals(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*TenantTotals, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if !from.Before(to) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "range end must be after start")
	}
	totals, err := s.repo.SumByTenant(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregating settlements")
	}
	return totals, nil
}

func (s *service) SweepEligible(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	eligible, err := s.payments.ListEligibleForSettlement(ctx, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing eligible payments")
	}

	created := 0
	for _, payment := range eligible {
		if _, err := s.Calculate(ctx, payment.ID, uuid.Nil); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("settlement sweep skipped payment %s: %v", payment.ID, err))
			continue
		}
		created++
	}
	return created, nil
}

// splitAmount floors the commission so rounding always favors the tenant;
// payout + commission reproduces the total exactly.
func splitAmount(totalMinor int, ratePercent decimal.Decimal) (commission, payout int) {
	commission = int(decimal.NewFromInt(int64(totalMinor)).
		Mul(ratePercent).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart())
	if commission < 0 {
		commission = 0
	}
	if commission > totalMinor {
		commission = totalMinor
	}
	payout = totalMinor - commission
	return commission, payout
}
