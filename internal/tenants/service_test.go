package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
)

type stubRepo struct {
	tenant   *models.Tenant
	blocking int64
	total    int64
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if s.tenant == nil || s.tenant.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.tenant, nil
}

func (s *stubRepo) CountBlockingReservations(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.blocking, nil
}

func (s *stubRepo) CountAllReservations(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.total, nil
}

func activeTenant() *models.Tenant {
	return &models.Tenant{
		ID:                    uuid.New(),
		Name:                  "Harbor Hotel",
		Slug:                  "harbor-hotel",
		CommissionRatePercent: decimal.NewFromFloat(5.0),
		PaymentProvider:       enums.PaymentProviderStripe,
		PaymentMode:           enums.PaymentModeTest,
		DefaultCurrency:       enums.CurrencyEUR,
		MaxActiveReservations: 2,
		MaxTotalReservations:  100,
		IsActive:              true,
	}
}

func TestConfigReturnsTypedSnapshot(t *testing.T) {
	tenant := activeTenant()
	svc, err := NewService(&stubRepo{tenant: tenant})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	cfg, err := svc.Config(context.Background(), tenant.ID)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !cfg.CommissionRatePercent.Equal(decimal.NewFromFloat(5.0)) {
		t.Fatalf("unexpected commission rate %s", cfg.CommissionRatePercent)
	}
	if cfg.PaymentProvider != enums.PaymentProviderStripe {
		t.Fatalf("unexpected provider %s", cfg.PaymentProvider)
	}
	if cfg.Currency != enums.CurrencyEUR {
		t.Fatalf("unexpected currency %s", cfg.Currency)
	}
}

func TestConfigRejectsUnknownAndInactiveTenants(t *testing.T) {
	tenant := activeTenant()
	tenant.IsActive = false
	svc, err := NewService(&stubRepo{tenant: tenant})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	if _, err := svc.Config(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected not found error")
	}
	if _, err := svc.Config(context.Background(), tenant.ID); err == nil {
		t.Fatalf("expected forbidden error for inactive tenant")
	}
}

func TestCanCreateEnforcesActiveLimit(t *testing.T) {
	tenant := activeTenant()
	repo := &stubRepo{tenant: tenant, blocking: 1}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	decision, err := svc.CanCreate(context.Background(), tenant.ID, enums.ResourceKindActiveReservations)
	if err != nil {
		t.Fatalf("quota check failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allowed below limit")
	}
	if decision.Limit != 2 || decision.Current != 1 {
		t.Fatalf("unexpected decision %+v", decision)
	}

	repo.blocking = 2
	decision, err = svc.CanCreate(context.Background(), tenant.ID, enums.ResourceKindActiveReservations)
	if err != nil {
		t.Fatalf("quota check failed: %v", err)
	}
	if decision.Allowed {
		t.Fatalf("expected denial at limit")
	}
}

func TestCanCreateZeroLimitMeansUnlimited(t *testing.T) {
	tenant := activeTenant()
	tenant.MaxTotalReservations = 0
	svc, err := NewService(&stubRepo{tenant: tenant, total: 100000})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}

	decision, err := svc.CanCreate(context.Background(), tenant.ID, enums.ResourceKindTotalReservations)
	if err != nil {
		t.Fatalf("quota check failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("zero limit must be unlimited")
	}
}
