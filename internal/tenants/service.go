package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
)

// Config is the immutable per-tenant configuration snapshot handed to other
// services. It is built from typed columns, never from a metadata blob.
type Config struct {
	TenantID              uuid.UUID
	CommissionRatePercent decimal.Decimal
	PaymentProvider       enums.PaymentProvider
	PaymentMode           enums.PaymentMode
	Currency              enums.Currency
	MaxActiveReservations int
	MaxTotalReservations  int
}

// QuotaDecision reports whether a create fits within the tenant's plan.
type QuotaDecision struct {
	Allowed bool  `json:"allowed"`
	Limit   int64 `json:"limit"`
	Current int64 `json:"current"`
}

// Service exposes tenant configuration and quota checks.
type Service interface {
	Config(ctx context.Context, tenantID uuid.UUID) (*Config, error)
	CanCreate(ctx context.Context, tenantID uuid.UUID, kind enums.ResourceKind) (*QuotaDecision, error)
	CanCreateWithTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind enums.ResourceKind) (*QuotaDecision, error)
}

type service struct {
	repo Repository
}

// NewService builds a tenants service with the required dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenants repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Config(ctx context.Context, tenantID uuid.UUID) (*Config, error) {
	return s.config(ctx, s.repo, tenantID)
}

func (s *service) config(ctx context.Context, repo Repository, tenantID uuid.UUID) (*Config, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	tenant, err := repo.FindTenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading tenant")
	}
	if !tenant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant is deactivated")
	}

	return &Config{
		TenantID:              tenant.ID,
		CommissionRatePercent: tenant.CommissionRatePercent,
		PaymentProvider:       tenant.PaymentProvider,
		PaymentMode:           tenant.PaymentMode,
		Currency:              tenant.DefaultCurrency,
		MaxActiveReservations: tenant.MaxActiveReservations,
		MaxTotalReservations:  tenant.MaxTotalReservations,
	}, nil
}

func (s *service) CanCreate(ctx context.Context, tenantID uuid.UUID, kind enums.ResourceKind) (*QuotaDecision, error) {
	return s.canCreate(ctx, s.repo, tenantID, kind)
}

// CanCreateWithTx evaluates the quota inside an already-open transaction so
// the count and the subsequent insert see the same snapshot.
func (s *service) CanCreateWithTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind enums.ResourceKind) (*QuotaDecision, error) {
	return s.canCreate(ctx, s.repo.WithTx(tx), tenantID, kind)
}

func (s *service) canCreate(ctx context.Context, repo Repository, tenantID uuid.UUID, kind enums.ResourceKind) (*QuotaDecision, error) {
	cfg, err := s.config(ctx, repo, tenantID)
	if err != nil {
		return nil, err
	}

	var limit int64
	var current int64
	switch kind {
	case enums.ResourceKindActiveReservations:
		limit = int64(cfg.MaxActiveReservations)
		current, err = repo.CountBlockingReservations(ctx, tenantID)
	case enums.ResourceKindTotalReservations:
		limit = int64(cfg.MaxTotalReservations)
		current, err = repo.CountAllReservations(ctx, tenantID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown resource kind %q", kind))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting reservations")
	}

	// A zero limit means the plan has no cap for this resource.
	decision := &QuotaDecision{Limit: limit, Current: current}
	decision.Allowed = limit <= 0 || current < limit
	return decision, nil
}
