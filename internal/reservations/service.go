package reservations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/availability"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/metrics"
	"github.com/stowpoint/stowpoint-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityChecker interface {
	CheckAndLock(ctx context.Context, tx *gorm.DB, input availability.CheckInput) (bool, *models.StorageUnit, error)
	IsAvailableWithTx(ctx context.Context, tx *gorm.DB, input availability.CheckInput) (bool, error)
}

type quoter interface {
	PriceWithTx(ctx context.Context, tx *gorm.DB, input pricing.QuoteInput) (*pricing.Quote, error)
}

type quotaChecker interface {
	Config(ctx context.Context, tenantID uuid.UUID) (*tenants.Config, error)
	CanCreateWithTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind enums.ResourceKind) (*tenants.QuotaDecision, error)
}

// PaymentAttacher ensures a ledger row exists for a freshly created
// reservation. Failure here must never fail the reservation itself.
type PaymentAttacher interface {
	EnsureForReservation(ctx context.Context, reservationID, tenantID uuid.UUID, metadata map[string]any) (*models.Payment, bool, error)
}

// PaymentCanceller voids a still-pending payment when its reservation dies.
type PaymentCanceller interface {
	CancelPendingForReservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
}

type auditor interface {
	RecordBestEffort(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service drives the reservation state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Reservation, error)
	Handover(ctx context.Context, input HandoverInput) (*models.Reservation, error)
	Return(ctx context.Context, input ReturnInput) (*models.Reservation, error)
	Extend(ctx context.Context, input ExtendInput) (*models.Reservation, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Reservation, error)
	MarkNoShow(ctx context.Context, reservationID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Reservation, error)
	MarkLost(ctx context.Context, reservationID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Reservation, error)
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Reservation, error)
	GetByScanToken(ctx context.Context, token string) (*models.Reservation, error)
	List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Reservation, string, error)
	SweepNoShows(ctx context.Context, startedBefore time.Time, batch int) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	avail    availabilityChecker
	pricing  quoter
	tenants  quotaChecker
	payments PaymentAttacher
	voider   PaymentCanceller
	auditor  auditor
	metrics  *metrics.ReservationMetrics
	logg     *logger.Logger
}

// NewService builds the reservation lifecycle service.
func NewService(
	repo Repository,
	tx txRunner,
	avail availabilityChecker,
	quotes quoter,
	tenantSvc quotaChecker,
	payments PaymentAttacher,
	voider PaymentCanceller,
	auditSvc auditor,
	reservationMetrics *metrics.ReservationMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reservations repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if avail == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if quotes == nil {
		return nil, fmt.Errorf("pricing service required")
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
		tx:       tx,
		avail:    avail,
		pricing:  quotes,
		tenants:  tenantSvc,
		payments: payments,
		voider:   voider,
		auditor:  auditSvc,
		metrics:  reservationMetrics,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Reservation, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if input.StorageUnitID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage unit id required")
	}
	if !input.Start.Before(input.End) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window end must be after start")
	}
	if input.ItemCount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item count must be at least 1")
	}
	if input.GuestName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest name required")
	}

	cfg, err := s.tenants.Config(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}

	var reservation *models.Reservation
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, kind := range []enums.ResourceKind{
			enums.ResourceKindActiveReservations,
			enums.ResourceKindTotalReservations,
		} {
			decision, err := s.tenants.CanCreateWithTx(ctx, tx, input.TenantID, kind)
			if err != nil {
				return err
			}
			if !decision.Allowed {
				s.metrics.IncQuotaDenied()
				return pkgerrors.New(pkgerrors.CodeQuota,
					fmt.Sprintf("%s quota reached (%d of %d)", kind, decision.Current, decision.Limit))
			}
		}

		free, unit, err := s.avail.CheckAndLock(ctx, tx, availability.CheckInput{
			StorageUnitID: input.StorageUnitID,
			Start:         input.Start,
			End:           input.End,
		})
		if err != nil {
			return err
		}
		if !free {
			return pkgerrors.New(pkgerrors.CodeConflict, "storage unit is not available for the requested window")
		}
		if unit.TenantID != input.TenantID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "storage unit belongs to another tenant")
		}

		quote := s.quoteOrFallback(ctx, tx, unit, input, cfg.Currency)

		reservation = &models.Reservation{
			ID:            uuid.New(),
			TenantID:      input.TenantID,
			LocationID:    unit.LocationID,
			StorageUnitID: unit.ID,
			Status:        enums.ReservationStatusReserved,
			StartAt:       input.Start,
			EndAt:         input.End,
			ItemCount:     input.ItemCount,
			AmountMinor:   quote.TotalMinor,
			Currency:      quote.Currency,
			GuestName:     input.GuestName,
			GuestPhone:    input.GuestPhone,
			GuestEmail:    input.GuestEmail,
			RoomNumber:    input.RoomNumber,
			ScanToken:     newScanToken(),
			CreatedByID:   input.ActorID,
		}
		if _, err := s.repo.WithTx(tx).Create(ctx, reservation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting reservation")
		}

		s.auditor.RecordBestEffort(ctx, tx, audit.Entry{
			TenantID: input.TenantID,
			ActorID:  input.ActorID,
			Action:   "reservation.created",
			Entity:   audit.EntityReservation,
			EntityID: reservation.ID,
			Meta: map[string]any{
				"new_status":   enums.ReservationStatusReserved.String(),
				"amount_minor": quote.TotalMinor,
				"start_at":     input.Start,
				"end_at":       input.End,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.ReservationStatusReserved.String())

	// Payment attach is recoverable later; its failure never unwinds the
	// reservation.
	if s.payments != nil {
		if _, _, err := s.payments.EnsureForReservation(ctx, reservation.ID, reservation.TenantID, nil); err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("payment attach failed for reservation %s: %v", reservation.ID, err))
		}
	}
	return reservation, nil
}

// quoteOrFallback degrades to the hard-coded fallback rate when the resolver
// fails, so pricing outages cannot block the front desk.
func (s *service) quoteOrFallback(ctx context.Context, tx *gorm.DB, unit *models.StorageUnit, input CreateInput, currency enums.Currency) *pricing.Quote {
	locationID := unit.LocationID
	unitID := unit.ID
	quote, err := s.pricing.PriceWithTx(ctx, tx, pricing.QuoteInput{
		TenantID:      input.TenantID,
		LocationID:    &locationID,
		StorageUnitID: &unitID,
		Start:         input.Start,
		End:           input.End,
		ItemCount:     input.ItemCount,
		Currency:      currency,
	})
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("pricing unavailable for unit %s, using fallback rate: %v", unit.ID, err))
		return pricing.FallbackQuote(input.Start, input.End, input.ItemCount, currency)
	}
	return quote
}

func (s *service) Handover(ctx context.Context, input HandoverInput) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		reservation, err = s.loadForUpdate(ctx, tx, input.ReservationID, input.TenantID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusReserved {
			return invalidTransition("handover", reservation.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":      enums.ReservationStatusActive,
			"handover_at": now,
		}
		if input.ActorID != nil {
			updates["handover_by_id"] = *input.ActorID
		}
		if input.Evidence != nil {
			updates["handover_evidence"] = *input.Evidence
		}
		if err := s.applyTransition(ctx, tx, reservation, updates, enums.StorageUnitStatusOccupied); err != nil {
			return err
		}

		s.recordTransition(ctx, tx, reservation, input.ActorID, "reservation.handover",
			reservation.Status, enums.ReservationStatusActive, nil)
		reservation.Status = enums.ReservationStatusActive
		reservation.HandoverAt = &now
		reservation.HandoverByID = input.ActorID
		reservation.HandoverEvidence = input.Evidence
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(enums.ReservationStatusActive.String())
	return reservation, nil
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		reservation, err = s.loadForUpdate(ctx, tx, input.ReservationID, input.TenantID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusActive {
			return invalidTransition("return", reservation.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":    enums.ReservationStatusCompleted,
			"return_at": now,
			"closed_at": now,
		}
		if input.ActorID != nil {
			updates["return_by_id"] = *input.ActorID
		}
		if input.Evidence != nil {
			updates["return_evidence"] = *input.Evidence
		}
		if err := s.applyTransition(ctx, tx, reservation, updates, enums.StorageUnitStatusIdle); err != nil {
			return err
		}

		s.recordTransition(ctx, tx, reservation, input.ActorID, "reservation.returned",
			reservation.Status, enums.ReservationStatusCompleted, nil)
		reservation.Status = enums.ReservationStatusCompleted
		reservation.ReturnAt = &now
		reservation.ReturnByID = input.ActorID
		reservation.ReturnEvidence = input.Evidence
		reservation.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(enums.ReservationStatusCompleted.String())
	return reservation, nil
}

func (s *service) Extend(ctx context.Context, input ExtendInput) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		reservation, err = s.loadForUpdate(ctx, tx, input.ReservationID, input.TenantID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationStatusReserved && reservation.Status != enums.ReservationStatusActive {
			return invalidTransition("extend", reservation.Status)
		}
		if !input.NewEnd.After(reservation.EndAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "new end must be after the current end")
		}

		reservationID := reservation.ID
		free, _, err := s.avail.CheckAndLock(ctx, tx, availability.CheckInput{
			StorageUnitID:        reservation.StorageUnitID,
			Start:                reservation.StartAt,
			End:                  input.NewEnd,
			ExcludeReservationID: &reservationID,
		})
		if err != nil {
			return err
		}
		if !free {
			return pkgerrors.New(pkgerrors.CodeConflict, "storage unit is not available for the extended window")
		}

		updates := map[string]any{"end_at": input.NewEnd}

		// The stored amount is a displayed estimate; the payment keeps its
		// own authoritative figure.
		locationID := reservation.LocationID
		unitID := reservation.StorageUnitID
		quote, err := s.pricing.PriceWithTx(ctx, tx, pricing.QuoteInput{
			TenantID:      reservation.TenantID,
			LocationID:    &locationID,
			StorageUnitID: &unitID,
			Start:         reservation.StartAt,
			End:           input.NewEnd,
			ItemCount:     reservation.ItemCount,
			Currency:      reservation.Currency,
		})
		if err != nil {
			s.logg.Warn(ctx, fmt.Sprintf("pricing unavailable on extend of %s, keeping stored amount: %v", reservation.ID, err))
		} else {
			updates["amount_minor"] = quote.TotalMinor
			reservation.AmountMinor = quote.TotalMinor
		}

		if err := s.repo.WithTx(tx).UpdateFields(ctx, reservation.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating reservation window")
		}

		s.recordTransition(ctx, tx, reservation, input.ActorID, "reservation.extended",
			reservation.Status, reservation.Status, map[string]any{
				"previous_end": reservation.EndAt,
				"new_end":      input.NewEnd,
			})
		reservation.EndAt = input.NewEnd
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Reservation, error) {
	var reservation *models.Reservation
	var repeated bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		reservation, err = s.loadForUpdate(ctx, tx, input.ReservationID, input.TenantID)
		if err != nil {
			return err
		}
		// Cancelling twice is a no-op, not an error.
		if reservation.Status == enums.ReservationStatusCancelled {
			repeated = true
			return nil
		}
		if reservation.Status != enums.ReservationStatusReserved && reservation.Status != enums.ReservationStatusActive {
			return invalidTransition("cancel", reservation.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":    enums.ReservationStatusCancelled,
			"closed_at": now,
		}
		if input.Reason != nil {
			updates["close_reason"] = *input.Reason
		}
		if err := s.applyTransition(ctx, tx, reservation, updates, enums.StorageUnitStatusIdle); err != nil {
			return err
		}

		if s.voider != nil {
			if err := s.voider.CancelPendingForReservation(ctx, tx, reservation.ID); err != nil {
				return err
			}
		}

		s.recordTransition(ctx, tx, reservation, input.ActorID, "reservation.cancelled",
			reservation.Status, enums.ReservationStatusCancelled, nil)
		reservation.Status = enums.ReservationStatusCancelled
		reservation.ClosedAt = &now
		reservation.CloseReason = input.Reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !repeated {
		s.metrics.IncTransition(enums.ReservationStatusCancelled.String())
	}
	return reservation, nil
}

func (s *service) MarkNoShow(ctx context.Context, reservationID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Reservation, error) {
	return s.terminal(ctx, reservationID, tenantID, actorID, "reservation.no_show", enums.ReservationStatusNoShow,
		[]enums.ReservationStatus{enums.ReservationStatusReserved})
}

func (s *service) MarkLost(ctx context.Context, reservationID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Reservation, error) {
	return s.terminal(ctx, reservationID, tenantID, actorID, "reservation.lost", enums.ReservationStatusLost,
		[]enums.ReservationStatus{enums.ReservationStatusReserved, enums.ReservationStatusActive})
}

func (s *service) terminal(ctx context.Context, reservationID, tenantID uuid.UUID, actorID *uuid.UUID, action string, target enums.ReservationStatus, validFrom []enums.ReservationStatus) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		reservation, err = s.loadForUpdate(ctx, tx, reservationID, tenantID)
		if err != nil {
			return err
		}
		allowed := false
		for _, status := range validFrom {
			if reservation.Status == status {
				allowed = true
				break
			}
		}
		if !allowed {
			return invalidTransition(string(target), reservation.Status)
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       target,
			"closed_at":    now,
			"close_reason": string(target),
		}
		if err := s.applyTransition(ctx, tx, reservation, updates, enums.StorageUnitStatusIdle); err != nil {
			return err
		}

		s.recordTransition(ctx, tx, reservation, actorID, action, reservation.Status, target, nil)
		reservation.Status = target
		reservation.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(target.String())
	return reservation, nil
}

func (s *service) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
	}
	if tenantID != uuid.Nil && reservation.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

func (s *service) GetByScanToken(ctx context.Context, token string) (*models.Reservation, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan token required")
	}
	reservation, err := s.repo.FindByScanToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
	}
	return reservation, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params pagination.Params, filters ListFilters) ([]models.Reservation, string, error) {
	if tenantID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	reservations, next, err := s.repo.List(ctx, tenantID, params, filters)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing reservations")
	}
	return reservations, next, nil
}

// SweepNoShows marks reservations whose window started before the cutoff and
// whose luggage never arrived. Returns how many rows were transitioned.
func (s *service) SweepNoShows(ctx context.Context, startedBefore time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	overdue, err := s.repo.FindOverdueReserved(ctx, startedBefore, batch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finding overdue reservations")
	}

	swept := 0
	for _, reservation := range overdue {
		if _, err := s.MarkNoShow(ctx, reservation.ID, uuid.Nil, nil); err != nil {
			// Another writer may have advanced it; skip and continue.
			s.logg.Warn(ctx, fmt.Sprintf("no-show sweep skipped %s: %v", reservation.ID, err))
			continue
		}
		swept++
	}
	return swept, nil
}

// loadForUpdate fetches a reservation inside the transaction. A non-zero
// tenantID scopes the lookup; rows owned by another tenant read as not found
// so existence is never disclosed across tenants.
func (s *service) loadForUpdate(ctx context.Context, tx *gorm.DB, id, tenantID uuid.UUID) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
	}
	if tenantID != uuid.Nil && reservation.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return reservation, nil
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, updates map[string]any, unitStatus enums.StorageUnitStatus) error {
	repo := s.repo.WithTx(tx)
	if err := repo.UpdateFields(ctx, reservation.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating reservation")
	}
	// Releasing to idle must not clobber the occupied hint while a different
	// reservation is active on the unit, e.g. cancelling a future booking
	// mid-stay.
	if unitStatus == enums.StorageUnitStatusIdle {
		held, err := repo.HasOtherActive(ctx, reservation.StorageUnitID, reservation.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking storage unit occupancy")
		}
		if held {
			return nil
		}
	}
	if err := repo.UpdateStorageUnitStatus(ctx, reservation.StorageUnitID, unitStatus); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating storage unit status")
	}
	return nil
}

func (s *service) recordTransition(ctx context.Context, tx *gorm.DB, reservation *models.Reservation, actorID *uuid.UUID, action string, from, to enums.ReservationStatus, extra map[string]any) {
	meta := map[string]any{
		"previous_status": from.String(),
		"new_status":      to.String(),
	}
	for k, v := range extra {
		meta[k] = v
	}
	s.auditor.RecordBestEffort(ctx, tx, audit.Entry{
		TenantID: reservation.TenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   audit.EntityReservation,
		EntityID: reservation.ID,
		Meta:     meta,
	})
}

func invalidTransition(operation string, current enums.ReservationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot %s a reservation in status %q", operation, current))
}

func newScanToken() string {
	return "scan_" + uuid.NewString()
}
