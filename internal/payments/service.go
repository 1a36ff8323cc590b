package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/stowpoint/stowpoint-backend/internal/audit"
	"github.com/stowpoint/stowpoint-backend/internal/pricing"
	"github.com/stowpoint/stowpoint-backend/internal/tenants"
	"github.com/stowpoint/stowpoint-backend/pkg/db"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
	"github.com/stowpoint/stowpoint-backend/pkg/logger"
	"github.com/stowpoint/stowpoint-backend/pkg/metrics"
)

const reservationUniqueIndex = "idx_payments_reservation_id"

type reservationLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

type tenantConfigReader interface {
	Config(ctx context.Context, tenantID uuid.UUID) (*tenants.Config, error)
}

type quoter interface {
	Price(ctx context.Context, input pricing.QuoteInput) (*pricing.Quote, error)
}

type auditor interface {
	RecordBestEffort(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// CheckoutSession is the hosted payment page handed to the guest.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ProviderUpdate is a normalized webhook event from the payment provider.
type ProviderUpdate struct {
	ProviderSessionID string
	Status            enums.PaymentStatus
	FailureReason     *string
	Metadata          map[string]any
}

// Service keeps the one-payment-per-reservation ledger.
type Service interface {
	// EnsureForReservation returns the reservation's payment, creating a
	// pending row if none exists. The second result reports whether this
	// call created it. Caller-supplied metadata is merged into the row on
	// both paths. A non-zero tenantID scopes every lookup to that tenant;
	// the zero value is a system caller and skips the check.
	EnsureForReservation(ctx context.Context, reservationID, tenantID uuid.UUID, metadata map[string]any) (*models.Payment, bool, error)
	StartCheckout(ctx context.Context, paymentID, tenantID uuid.UUID, successURL, cancelURL string) (*CheckoutSession, error)
	ConfirmCash(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Payment, error)
	ConfirmPOS(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Payment, error)
	ApplyProviderUpdate(ctx context.Context, update ProviderUpdate) (*models.Payment, error)
	CancelPendingForReservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error
	GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Payment, error)
	GetByReservation(ctx context.Context, reservationID, tenantID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo         Repository
	reservations reservationLoader
	tenants      tenantConfigReader
	pricing      quoter
	checkout     StripeCheckoutClient
	auditor      auditor
	metrics      *metrics.ReservationMetrics
	logg         *logger.Logger
}

// NewService builds the payment ledger service. The checkout client may be
// nil when the deployment only takes cash and POS payments.
func NewService(
	repo Repository,
	reservations reservationLoader,
	tenantSvc tenantConfigReader,
	pricingSvc quoter,
	checkout StripeCheckoutClient,
	auditSvc auditor,
	reservationMetrics *metrics.ReservationMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if reservations == nil {
		return nil, fmt.Errorf("reservation loader required")
	}
	if tenantSvc == nil {
		return nil, fmt.Errorf("tenants service required")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:         repo,
		reservations: reservations,
		tenants:      tenantSvc,
		pricing:      pricingSvc,
		checkout:     checkout,
		auditor:      auditSvc,
		metrics:      reservationMetrics,
		logg:         logg,
	}, nil
}

func (s *service) EnsureForReservation(ctx context.Context, reservationID, tenantID uuid.UUID, metadata map[string]any) (*models.Payment, bool, error) {
	if reservationID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	if existing, err := s.repo.FindByReservationID(ctx, reservationID); err == nil {
		if tenantID != uuid.Nil && existing.TenantID != tenantID {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		if err := s.mergeMetadataIntoRow(ctx, existing, metadata); err != nil {
			return nil, false, err
		}
		return s.refreshMutableAmount(ctx, existing), false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment")
	}

	reservation, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation")
	}
	if tenantID != uuid.Nil && reservation.TenantID != tenantID {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if reservation.Status.IsTerminal() {
		return nil, false, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot attach a payment to a reservation in status %q", reservation.Status))
	}

	cfg, err := s.tenants.Config(ctx, reservation.TenantID)
	if err != nil {
		return nil, false, err
	}

	rid := reservation.ID
	unitID := reservation.StorageUnitID
	payment := &models.Payment{
		ID:                uuid.New(),
		TenantID:          reservation.TenantID,
		ReservationID:     &rid,
		StorageUnitID:     &unitID,
		Provider:          cfg.PaymentProvider,
		Mode:              cfg.PaymentMode,
		ProviderSessionID: "ps_" + uuid.NewString(),
		Status:            enums.PaymentStatusPending,
		AmountMinor:       s.authoritativeAmount(ctx, reservation),
		Currency:          reservation.Currency,
	}
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding payment metadata")
		}
		payment.Metadata = encoded
	}

	if _, err := s.repo.Create(ctx, payment); err != nil {
		// A racing create got there first; converge on its row.
		if db.IsUniqueViolation(err, reservationUniqueIndex) {
			existing, findErr := s.repo.FindByReservationID(ctx, reservationID)
			if findErr != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "loading payment after duplicate create")
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting payment")
	}

	s.metrics.IncPayment(enums.PaymentStatusPending.String())
	s.auditor.RecordBestEffort(ctx, nil, audit.Entry{
		TenantID: payment.TenantID,
		Action:   "payment.created",
		Entity:   audit.EntityPayment,
		EntityID: payment.ID,
		Meta: map[string]any{
			"reservation_id": reservationID,
			"amount_minor":   payment.AmountMinor,
			"provider":       payment.Provider.String(),
		},
	})
	return payment, true, nil
}

// mergeMetadataIntoRow folds caller-supplied metadata into an existing
// payment and persists the result.
func (s *service) mergeMetadataIntoRow(ctx context.Context, payment *models.Payment, metadata map[string]any) error {
	if len(metadata) == 0 {
		return nil
	}
	merged, err := mergeMetadata(payment.Metadata, metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merging payment metadata")
	}
	if err := s.repo.UpdateFields(ctx, payment.ID, map[string]any{"metadata": merged}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persisting payment metadata")
	}
	payment.Metadata = merged
	return nil
}

// refreshMutableAmount backfills a missing amount on the found path of
// ensure. Amounts freeze at paid/captured; before that a zero amount is
// corrected from live pricing. Failure degrades to the stored row.
func (s *service) refreshMutableAmount(ctx context.Context, payment *models.Payment) *models.Payment {
	if payment.AmountMinor > 0 {
		return payment
	}
	if payment.Status == enums.PaymentStatusPaid || payment.Status == enums.PaymentStatusCaptured {
		return payment
	}
	amount, err := s.backfillAmount(ctx, payment)
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("amount backfill failed for payment %s: %v", payment.ID, err))
		return payment
	}
	if err := s.repo.UpdateFields(ctx, payment.ID, map[string]any{"amount_minor": amount}); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("persisting backfilled amount for payment %s: %v", payment.ID, err))
		return payment
	}
	payment.AmountMinor = amount
	return payment
}

// authoritativeAmount prefers the reservation's quoted amount; a zero amount
// is backfilled from live pricing so the ledger never charges nothing by
// accident.
func (s *service) authoritativeAmount(ctx context.Context, reservation *models.Reservation) int {
	if reservation.AmountMinor > 0 {
		return reservation.AmountMinor
	}
	locationID := reservation.LocationID
	unitID := reservation.StorageUnitID
	quote, err := s.pricing.Price(ctx, pricing.QuoteInput{
		TenantID:      reservation.TenantID,
		LocationID:    &locationID,
		StorageUnitID: &unitID,
		Start:         reservation.StartAt,
		End:           reservation.EndAt,
		ItemCount:     reservation.ItemCount,
		Currency:      reservation.Currency,
	})
	if err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("backfill pricing failed for reservation %s: %v", reservation.ID, err))
		fallback := pricing.FallbackQuote(reservation.StartAt, reservation.EndAt, reservation.ItemCount, reservation.Currency)
		return fallback.TotalMinor
	}
	return quote.TotalMinor
}

func (s *service) StartCheckout(ctx context.Context, paymentID, tenantID uuid.UUID, successURL, cancelURL string) (*CheckoutSession, error) {
	if s.checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "online checkout is not configured")
	}
	payment, err := s.GetByID(ctx, paymentID, tenantID)
	if err != nil {
		return nil, err
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot start checkout for a payment in status %q", payment.Status))
	}
	if payment.Provider != enums.PaymentProviderStripe {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("checkout requires the stripe provider, payment uses %q", payment.Provider))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(payment.Currency)),
					UnitAmount: stripe.Int64(int64(payment.AmountMinor)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Luggage storage"),
					},
				},
			},
		},
		Metadata: map[string]string{
			"payment_id": payment.ID.String(),
			"tenant_id":  payment.TenantID.String(),
		},
	}
	created, err := s.checkout.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating checkout session")
	}

	if err := s.repo.UpdateFields(ctx, payment.ID, map[string]any{
		"provider_session_id": created.ID,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attaching checkout session")
	}
	return &CheckoutSession{SessionID: created.ID, URL: created.URL}, nil
}

func (s *service) ConfirmCash(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Payment, error) {
	return s.confirmManual(ctx, paymentID, tenantID, actorID, enums.PaymentProviderCash, "payment.confirmed_cash")
}

func (s *service) ConfirmPOS(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID) (*models.Payment, error) {
	return s.confirmManual(ctx, paymentID, tenantID, actorID, enums.PaymentProviderPOS, "payment.confirmed_pos")
}

func (s *service) confirmManual(ctx context.Context, paymentID, tenantID uuid.UUID, actorID *uuid.UUID, provider enums.PaymentProvider, action string) (*models.Payment, error) {
	payment, err := s.GetByID(ctx, paymentID, tenantID)
	if err != nil {
		return nil, err
	}
	// Confirming twice over the desk is a no-op.
	if payment.Status == enums.PaymentStatusPaid {
		return payment, nil
	}
	if payment.Status != enums.PaymentStatusPending && payment.Status != enums.PaymentStatusAuthorized {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot confirm a payment in status %q", payment.Status))
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":   enums.PaymentStatusPaid,
		"provider": provider,
		"paid_at":  now,
	}
	if payment.AmountMinor == 0 {
		amount, err := s.backfillAmount(ctx, payment)
		if err != nil {
			return nil, err
		}
		updates["amount_minor"] = amount
		payment.AmountMinor = amount
	}
	if err := s.repo.UpdateFields(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirming payment")
	}

	payment.Status = enums.PaymentStatusPaid
	payment.Provider = provider
	payment.PaidAt = &now

	s.metrics.IncPayment(enums.PaymentStatusPaid.String())
	s.auditor.RecordBestEffort(ctx, nil, audit.Entry{
		TenantID: payment.TenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   audit.EntityPayment,
		EntityID: payment.ID,
		Meta: map[string]any{
			"amount_minor": payment.AmountMinor,
			"provider":     provider.String(),
		},
	})
	return payment, nil
}

func (s *service) backfillAmount(ctx context.Context, payment *models.Payment) (int, error) {
	if payment.ReservationID == nil {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no reservation to price against")
	}
	reservation, err := s.reservations.FindByID(ctx, *payment.ReservationID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading reservation for amount backfill")
	}
	return s.authoritativeAmount(ctx, reservation), nil
}

func (s *service) ApplyProviderUpdate(ctx context.Context, update ProviderUpdate) (*models.Payment, error) {
	if update.ProviderSessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider session id required")
	}
	if !update.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", update.Status))
	}

	payment, err := s.repo.FindByProviderSessionID(ctx, update.ProviderSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for provider session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment")
	}

	// Replayed events are acknowledged without touching the row.
	if payment.Status == update.Status {
		return payment, nil
	}
	if !allowedPaymentTransition(payment.Status, update.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move payment from %q to %q", payment.Status, update.Status))
	}

	updates := map[string]any{"status": update.Status}
	now := time.Now().UTC()
	if update.Status == enums.PaymentStatusPaid || update.Status == enums.PaymentStatusCaptured {
		updates["paid_at"] = now
	}
	if update.FailureReason != nil {
		updates["failure_reason"] = *update.FailureReason
	}
	if len(update.Metadata) > 0 {
		merged, err := mergeMetadata(payment.Metadata, update.Metadata)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merging payment metadata")
		}
		updates["metadata"] = merged
		payment.Metadata = merged
	}

	if err := s.repo.UpdateFields(ctx, payment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating payment status")
	}

	previous := payment.Status
	payment.Status = update.Status
	payment.FailureReason = update.FailureReason
	if update.Status == enums.PaymentStatusPaid || update.Status == enums.PaymentStatusCaptured {
		payment.PaidAt = &now
	}

	s.metrics.IncPayment(update.Status.String())
	s.auditor.RecordBestEffort(ctx, nil, audit.Entry{
		TenantID: payment.TenantID,
		Action:   "payment.provider_update",
		Entity:   audit.EntityPayment,
		EntityID: payment.ID,
		Meta: map[string]any{
			"previous_status": previous.String(),
			"new_status":      update.Status.String(),
		},
	})
	return payment, nil
}

func (s *service) CancelPendingForReservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.CancelPendingByReservation(ctx, reservationID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancelling pending payment")
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment")
	}
	if tenantID != uuid.Nil && payment.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func (s *service) GetByReservation(ctx context.Context, reservationID, tenantID uuid.UUID) (*models.Payment, error) {
	if reservationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	payment, err := s.repo.FindByReservationID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment")
	}
	if tenantID != uuid.Nil && payment.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

// allowedPaymentTransition encodes the provider-driven status machine. Frozen
// statuses only move to refunded.
func allowedPaymentTransition(from, to enums.PaymentStatus) bool {
	switch from {
	case enums.PaymentStatusPending:
		switch to {
		case enums.PaymentStatusAuthorized, enums.PaymentStatusCaptured,
			enums.PaymentStatusPaid, enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
			return true
		}
	case enums.PaymentStatusAuthorized:
		switch to {
		case enums.PaymentStatusCaptured, enums.PaymentStatusPaid,
			enums.PaymentStatusFailed, enums.PaymentStatusCancelled:
			return true
		}
	case enums.PaymentStatusCaptured, enums.PaymentStatusPaid:
		return to == enums.PaymentStatusRefunded
	case enums.PaymentStatusFailed:
		return to == enums.PaymentStatusPaid || to == enums.PaymentStatusCaptured
	}
	return false
}

func mergeMetadata(existing json.RawMessage, extra map[string]any) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return nil, err
		}
	}
	for key, value := range extra {
		merged[key] = value
	}
	return json.Marshal(merged)
}
