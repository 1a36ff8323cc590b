package reservations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
)

func newLifecycleTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	for _, schema := range []string{
		`CREATE TABLE IF NOT EXISTS tenants (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  commission_rate_percent TEXT NOT NULL DEFAULT '0',
  payment_provider TEXT NOT NULL DEFAULT 'cash',
  payment_mode TEXT NOT NULL DEFAULT 'test',
  default_currency TEXT NOT NULL DEFAULT 'EUR',
  max_active_reservations INTEGER NOT NULL DEFAULT 0,
  max_total_reservations INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS storage_units (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  location_id TEXT NOT NULL,
  code TEXT NOT NULL,
  capacity INTEGER NOT NULL DEFAULT 1,
  status TEXT NOT NULL DEFAULT 'idle',
  notes TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS reservations (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  location_id TEXT NOT NULL,
  storage_unit_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'reserved',
  start_at DATETIME NOT NULL,
  end_at DATETIME NOT NULL,
  item_count INTEGER NOT NULL DEFAULT 1,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  guest_name TEXT NOT NULL,
  guest_phone TEXT,
  guest_email TEXT,
  room_number TEXT,
  scan_token TEXT NOT NULL UNIQUE,
  created_by_id TEXT,
  handover_by_id TEXT,
  handover_at DATETIME,
  handover_evidence TEXT,
  return_by_id TEXT,
  return_at DATETIME,
  return_evidence TEXT,
  closed_at DATETIME,
  close_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS price_rules (
  id TEXT PRIMARY KEY,
  scope TEXT NOT NULL,
  tenant_id TEXT,
  location_id TEXT,
  storage_unit_id TEXT,
  pricing_type TEXT NOT NULL DEFAULT 'hourly',
  hourly_rate_minor INTEGER NOT NULL DEFAULT 0,
  daily_rate_minor INTEGER NOT NULL DEFAULT 0,
  weekly_rate_minor INTEGER NOT NULL DEFAULT 0,
  monthly_rate_minor INTEGER NOT NULL DEFAULT 0,
  minimum_charge_minor INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL,
  priority INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
  id TEXT PRIMARY KEY,
  tenant_id TEXT NOT NULL,
  actor_id TEXT,
  action TEXT NOT NULL,
  entity TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`,
	} {
		if err := db.Exec(schema).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubAttacher struct {
	calls []uuid.UUID
	err   error
}

func (s *stubAttacher) EnsureForReservation(_ context.Context, reservationID, _ uuid.UUID, _ map[string]any) (*models.Payment, bool, error) {
	s.calls = append(s.calls, reservationID)
	if s.err != nil {
		return nil, false, s.err
	}
	return &models.Payment{ID: uuid.New(), ReservationID: &reservationID}, true, nil
}

type stubCanceller struct {
	calls []uuid.UUID
	err   error
}

func (s *stubCanceller) CancelPendingForReservation(_ context.Context, _ *gorm.DB, reservationID uuid.UUID) error {
	s.calls = append(s.calls, reservationID)
	return s.err
}

type lifecycleFixture struct {
	db        *gorm.DB
	svc       Service
	attacher  *stubAttacher
	canceller *stubCanceller
	tenant    models.Tenant
	unit      models.StorageUnit
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	db := newLifecycleTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "reservations-test", Level: logger.ParseLevel("error")})

	availSvc, err := availability.NewService(availability.NewRepository(db))
	if err != nil {
		t.Fatalf("availability service: %v", err)
	}
	pricingSvc, err := pricing.NewService(pricing.NewRepository(db), enums.CurrencyEUR)
	if err != nil {
		t.Fatalf("pricing service: %v", err)
	}
	tenantSvc, err := tenants.NewService(tenants.NewRepository(db))
	if err != nil {
		t.Fatalf("tenants service: %v", err)
	}
	auditSvc, err := audit.NewService(audit.NewRepository(db), logg)
	if err != nil {
		t.Fatalf("audit service: %v", err)
	}

	attacher := &stubAttacher{}
	canceller := &stubCanceller{}
	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		availSvc,
		pricingSvc,
		tenantSvc,
		attacher,
		canceller,
		auditSvc,
		nil,
		logg,
	)
	if err != nil {
		t.Fatalf("reservations service: %v", err)
	}

	fx := &lifecycleFixture{db: db, svc: svc, attacher: attacher, canceller: canceller}
	fx.tenant = models.Tenant{
		ID:              uuid.New(),
		Name:            "Hotel Miramar",
		Slug:            "hotel-miramar-" + uuid.NewString()[:8],
		PaymentProvider: enums.PaymentProviderCash,
		PaymentMode:     enums.PaymentModeTest,
		DefaultCurrency: enums.CurrencyEUR,
		IsActive:        true,
	}
	if err := db.Create(&fx.tenant).Error; err != nil {
		t.Fatalf("seeding tenant: %v", err)
	}
	fx.unit = models.StorageUnit{
		ID:         uuid.New(),
		TenantID:   fx.tenant.ID,
		LocationID: uuid.New(),
		Code:       "A-01",
		Capacity:   4,
		Status:     enums.StorageUnitStatusIdle,
		IsActive:   true,
	}
	if err := db.Create(&fx.unit).Error; err != nil {
		t.Fatalf("seeding storage unit: %v", err)
	}
	return fx
}

func (fx *lifecycleFixture) createInput(start, end time.Time) CreateInput {
	return CreateInput{
		TenantID:      fx.tenant.ID,
		StorageUnitID: fx.unit.ID,
		Start:         start,
		End:           end,
		ItemCount:     1,
		GuestName:     "Ada Lovelace",
	}
}

func (fx *lifecycleFixture) unitStatus(t *testing.T) enums.StorageUnitStatus {
	t.Helper()
	var unit models.StorageUnit
	if err := fx.db.Where("id = ?", fx.unit.ID).First(&unit).Error; err != nil {
		t.Fatalf("reloading unit: %v", err)
	}
	return unit.Status
}

func (fx *lifecycleFixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	if err := fx.db.Table("audit_logs").Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("counting audit rows: %v", err)
	}
	return count
}

func futureWindow(hours int) (time.Time, time.Time) {
	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	return start, start.Add(time.Duration(hours) * time.Hour)
}

func TestCreateReservation(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	input := fx.createInput(start, end)
	input.ItemCount = 2
	reservation, err := fx.svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reservation.Status != enums.ReservationStatusReserved {
		t.Fatalf("expected status reserved, got %s", reservation.Status)
	}
	// No rules seeded: 2h at the fallback hourly rate, twice for two bags.
	if reservation.AmountMinor != 2*1500*2 {
		t.Fatalf("expected amount 6000, got %d", reservation.AmountMinor)
	}
	if reservation.Currency != enums.CurrencyEUR {
		t.Fatalf("expected EUR, got %s", reservation.Currency)
	}
	if reservation.ScanToken == "" {
		t.Fatal("expected a scan token")
	}
	if got := fx.auditCount(t, "reservation.created"); got != 1 {
		t.Fatalf("expected 1 audit row, got %d", got)
	}
	if len(fx.attacher.calls) != 1 || fx.attacher.calls[0] != reservation.ID {
		t.Fatalf("expected payment attach for %s, got %v", reservation.ID, fx.attacher.calls)
	}

	loaded, err := fx.svc.GetByScanToken(ctx, reservation.ScanToken)
	if err != nil {
		t.Fatalf("get by scan token: %v", err)
	}
	if loaded.ID != reservation.ID {
		t.Fatalf("scan token resolved to %s, want %s", loaded.ID, reservation.ID)
	}
}

func TestCreateUsesMatchingPriceRule(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	tenantID := fx.tenant.ID
	rule := models.PriceRule{
		ID:              uuid.New(),
		Scope:           enums.PriceRuleScopeTenant,
		TenantID:        &tenantID,
		PricingType:     enums.PricingTypeHourly,
		HourlyRateMinor: 800,
		Currency:        enums.CurrencyEUR,
		IsActive:        true,
	}
	if err := fx.db.Create(&rule).Error; err != nil {
		t.Fatalf("seeding rule: %v", err)
	}

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if reservation.AmountMinor != 1600 {
		t.Fatalf("expected amount 1600 from tenant rule, got %d", reservation.AmountMinor)
	}
}

func TestCreateRejectsOverlappingWindow(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(4)

	if _, err := fx.svc.Create(ctx, fx.createInput(start, end)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	overlapping := fx.createInput(start.Add(time.Hour), end.Add(time.Hour))
	_, err := fx.svc.Create(ctx, overlapping)
	if err == nil {
		t.Fatal("expected conflict for overlapping window")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}

	// Back-to-back windows share an instant but never a moment of storage.
	adjacent := fx.createInput(end, end.Add(2*time.Hour))
	if _, err := fx.svc.Create(ctx, adjacent); err != nil {
		t.Fatalf("adjacent create: %v", err)
	}
}

func TestCreateEnforcesActiveQuota(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()

	if err := fx.db.Model(&models.Tenant{}).
		Where("id = ?", fx.tenant.ID).
		Update("max_active_reservations", 1).Error; err != nil {
		t.Fatalf("tightening quota: %v", err)
	}

	start, end := futureWindow(2)
	if _, err := fx.svc.Create(ctx, fx.createInput(start, end)); err != nil {
		t.Fatalf("first create: %v", err)
	}

	secondUnit := models.StorageUnit{
		ID:         uuid.New(),
		TenantID:   fx.tenant.ID,
		LocationID: fx.unit.LocationID,
		Code:       "A-02",
		Capacity:   4,
		Status:     enums.StorageUnitStatusIdle,
		IsActive:   true,
	}
	if err := fx.db.Create(&secondUnit).Error; err != nil {
		t.Fatalf("seeding second unit: %v", err)
	}

	input := fx.createInput(start, end)
	input.StorageUnitID = secondUnit.ID
	_, err := fx.svc.Create(ctx, input)
	if err == nil {
		t.Fatal("expected quota rejection")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeQuota {
		t.Fatalf("expected quota code, got %v", err)
	}
}

func TestCreateSurvivesPaymentAttachFailure(t *testing.T) {
	fx := newLifecycleFixture(t)
	fx.attacher.err = fmt.Errorf("provider unreachable")
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create should survive attach failure: %v", err)
	}
	if reservation.Status != enums.ReservationStatusReserved {
		t.Fatalf("expected reserved, got %s", reservation.Status)
	}
}

func TestCreateValidation(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing tenant", func(in *CreateInput) { in.TenantID = uuid.Nil }},
		{"missing unit", func(in *CreateInput) { in.StorageUnitID = uuid.Nil }},
		{"inverted window", func(in *CreateInput) { in.Start, in.End = in.End, in.Start }},
		{"empty window", func(in *CreateInput) { in.End = in.Start }},
		{"zero items", func(in *CreateInput) { in.ItemCount = 0 }},
		{"missing guest", func(in *CreateInput) { in.GuestName = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := fx.createInput(start, end)
			tc.mutate(&input)
			_, err := fx.svc.Create(ctx, input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation code, got %v", err)
			}
		})
	}
}

func TestHandoverAndReturnFlow(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(4)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	staffID := uuid.New()
	evidence := "photo://handover.jpg"
	active, err := fx.svc.Handover(ctx, HandoverInput{
		ReservationID: reservation.ID,
		ActorID:       &staffID,
		Evidence:      &evidence,
	})
	if err != nil {
		t.Fatalf("handover: %v", err)
	}
	if active.Status != enums.ReservationStatusActive {
		t.Fatalf("expected active, got %s", active.Status)
	}
	if active.HandoverAt == nil {
		t.Fatal("expected handover timestamp")
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusOccupied {
		t.Fatalf("expected unit occupied, got %s", got)
	}

	completed, err := fx.svc.Return(ctx, ReturnInput{ReservationID: reservation.ID, ActorID: &staffID})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if completed.Status != enums.ReservationStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
	if completed.ClosedAt == nil {
		t.Fatal("expected closed timestamp")
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusIdle {
		t.Fatalf("expected unit idle, got %s", got)
	}

	// The machine only moves forward.
	if _, err := fx.svc.Handover(ctx, HandoverInput{ReservationID: reservation.ID}); err == nil {
		t.Fatal("expected rejection of handover on a completed reservation")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if _, err := fx.svc.Return(ctx, ReturnInput{ReservationID: reservation.ID}); err == nil {
		t.Fatal("expected rejection of return on a completed reservation")
	}
}

func TestReturnRequiresActive(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = fx.svc.Return(ctx, ReturnInput{ReservationID: reservation.ID})
	if err == nil {
		t.Fatal("expected rejection of return before handover")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestExtendMovesEndAndReprices(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newEnd := end.Add(2 * time.Hour)
	extended, err := fx.svc.Extend(ctx, ExtendInput{ReservationID: reservation.ID, NewEnd: newEnd})
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !extended.EndAt.Equal(newEnd) {
		t.Fatalf("expected end %s, got %s", newEnd, extended.EndAt)
	}
	if extended.AmountMinor != 4*1500 {
		t.Fatalf("expected repriced amount 6000, got %d", extended.AmountMinor)
	}

	// Shrinking or holding still is not an extension.
	if _, err := fx.svc.Extend(ctx, ExtendInput{ReservationID: reservation.ID, NewEnd: newEnd}); err == nil {
		t.Fatal("expected rejection of unchanged end")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestExtendBlockedByNeighbor(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.Create(ctx, fx.createInput(end, end.Add(2*time.Hour))); err != nil {
		t.Fatalf("neighbor create: %v", err)
	}

	_, err = fx.svc.Extend(ctx, ExtendInput{ReservationID: reservation.ID, NewEnd: end.Add(time.Hour)})
	if err == nil {
		t.Fatal("expected conflict extending into the neighbor")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code, got %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	reason := "guest changed plans"
	first, err := fx.svc.Cancel(ctx, CancelInput{ReservationID: reservation.ID, Reason: &reason})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != enums.ReservationStatusCancelled {
		t.Fatalf("expected cancelled, got %s", first.Status)
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusIdle {
		t.Fatalf("expected unit idle, got %s", got)
	}
	if len(fx.canceller.calls) != 1 {
		t.Fatalf("expected one pending-payment void, got %d", len(fx.canceller.calls))
	}

	second, err := fx.svc.Cancel(ctx, CancelInput{ReservationID: reservation.ID, Reason: &reason})
	if err != nil {
		t.Fatalf("second cancel must be a no-op, got: %v", err)
	}
	if second.Status != enums.ReservationStatusCancelled {
		t.Fatalf("expected cancelled on repeat, got %s", second.Status)
	}
	if len(fx.canceller.calls) != 1 {
		t.Fatalf("repeat cancel must not void again, got %d calls", len(fx.canceller.calls))
	}
	if got := fx.auditCount(t, "reservation.cancelled"); got != 1 {
		t.Fatalf("expected a single cancel audit row, got %d", got)
	}
}

func TestCancelRejectsCompleted(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.Handover(ctx, HandoverInput{ReservationID: reservation.ID}); err != nil {
		t.Fatalf("handover: %v", err)
	}
	if _, err := fx.svc.Return(ctx, ReturnInput{ReservationID: reservation.ID}); err != nil {
		t.Fatalf("return: %v", err)
	}

	_, err = fx.svc.Cancel(ctx, CancelInput{ReservationID: reservation.ID})
	if err == nil {
		t.Fatal("expected rejection of cancel after completion")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelHidesForeignTenant(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = fx.svc.Cancel(ctx, CancelInput{ReservationID: reservation.ID, TenantID: uuid.New()})
	if err == nil {
		t.Fatal("expected rejection for a foreign tenant")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	reloaded, err := fx.svc.GetByID(ctx, reservation.ID, fx.tenant.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.ReservationStatusReserved {
		t.Fatalf("foreign cancel must not move the reservation, got %s", reloaded.Status)
	}

	owned, err := fx.svc.Cancel(ctx, CancelInput{ReservationID: reservation.ID, TenantID: fx.tenant.ID})
	if err != nil {
		t.Fatalf("owning tenant cancel: %v", err)
	}
	if owned.Status != enums.ReservationStatusCancelled {
		t.Fatalf("expected cancelled, got %s", owned.Status)
	}
}

func TestGetByIDHidesForeignTenant(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = fx.svc.GetByID(ctx, reservation.ID, uuid.New())
	if err == nil {
		t.Fatal("expected not found for a foreign tenant")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}

	if _, err := fx.svc.GetByID(ctx, reservation.ID, fx.tenant.ID); err != nil {
		t.Fatalf("owning tenant get: %v", err)
	}
}

func TestCancelKeepsUnitOccupiedDuringOtherStay(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	current, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create current: %v", err)
	}
	if _, err := fx.svc.Handover(ctx, HandoverInput{ReservationID: current.ID}); err != nil {
		t.Fatalf("handover: %v", err)
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusOccupied {
		t.Fatalf("expected unit occupied, got %s", got)
	}

	// A later booking on the same unit, cancelled mid-stay of the first.
	future, err := fx.svc.Create(ctx, fx.createInput(end.Add(time.Hour), end.Add(3*time.Hour)))
	if err != nil {
		t.Fatalf("create future: %v", err)
	}
	if _, err := fx.svc.Cancel(ctx, CancelInput{ReservationID: future.ID}); err != nil {
		t.Fatalf("cancel future: %v", err)
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusOccupied {
		t.Fatalf("cancelling a future booking must not release the unit, got %s", got)
	}

	if _, err := fx.svc.Return(ctx, ReturnInput{ReservationID: current.ID}); err != nil {
		t.Fatalf("return: %v", err)
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusIdle {
		t.Fatalf("expected unit idle after the stay ends, got %s", got)
	}
}

func TestMarkLostFromActive(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	start, end := futureWindow(2)

	reservation, err := fx.svc.Create(ctx, fx.createInput(start, end))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.Handover(ctx, HandoverInput{ReservationID: reservation.ID}); err != nil {
		t.Fatalf("handover: %v", err)
	}

	lost, err := fx.svc.MarkLost(ctx, reservation.ID, uuid.Nil, nil)
	if err != nil {
		t.Fatalf("mark lost: %v", err)
	}
	if lost.Status != enums.ReservationStatusLost {
		t.Fatalf("expected lost, got %s", lost.Status)
	}
	if got := fx.unitStatus(t); got != enums.StorageUnitStatusIdle {
		t.Fatalf("expected unit idle, got %s", got)
	}
}

func TestSweepNoShows(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()

	// Pending start in the past with no handover: a no-show candidate.
	stale := models.Reservation{
		ID:            uuid.New(),
		TenantID:      fx.tenant.ID,
		LocationID:    fx.unit.LocationID,
		StorageUnitID: fx.unit.ID,
		Status:        enums.ReservationStatusReserved,
		StartAt:       time.Now().UTC().Add(-6 * time.Hour),
		EndAt:         time.Now().UTC().Add(-4 * time.Hour),
		ItemCount:     1,
		AmountMinor:   1500,
		Currency:      enums.CurrencyEUR,
		GuestName:     "Grace Hopper",
		ScanToken:     "scan_" + uuid.NewString(),
	}
	if err := fx.db.Create(&stale).Error; err != nil {
		t.Fatalf("seeding stale reservation: %v", err)
	}

	start, end := futureWindow(2)
	if _, err := fx.svc.Create(ctx, fx.createInput(start, end)); err != nil {
		t.Fatalf("future create: %v", err)
	}

	swept, err := fx.svc.SweepNoShows(ctx, time.Now().UTC().Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept reservation, got %d", swept)
	}

	reloaded, err := fx.svc.GetByID(ctx, stale.ID, uuid.Nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.ReservationStatusNoShow {
		t.Fatalf("expected no_show, got %s", reloaded.Status)
	}

	again, err := fx.svc.SweepNoShows(ctx, time.Now().UTC().Add(-time.Hour), 50)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if again != 0 {
		t.Fatalf("second sweep should find nothing, got %d", again)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	fx := newLifecycleFixture(t)
	_, err := fx.svc.GetByID(context.Background(), uuid.New(), uuid.Nil)
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}
