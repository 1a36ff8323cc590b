package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/stowpoint/stowpoint-backend/internal/payments"
	"github.com/stowpoint/stowpoint-backend/pkg/db/models"
	"github.com/stowpoint/stowpoint-backend/pkg/enums"
	pkgerrors "github.com/stowpoint/stowpoint-backend/pkg/errors"
)

type paymentUpdater interface {
	ApplyProviderUpdate(ctx context.Context, update payments.ProviderUpdate) (*models.Payment, error)
}

// Service translates Stripe checkout events into ledger updates.
type Service struct {
	payments paymentUpdater
}

func NewService(paymentSvc paymentUpdater) (*Service, error) {
	if paymentSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	return &Service{payments: paymentSvc}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.applySessionEvent(ctx, event, &session)
	default:
		// Unsubscribed event types are acknowledged without action so
		// Stripe stops retrying them.
		return nil
	}
}

func (s *Service) applySessionEvent(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) error {
	if session.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	update := payments.ProviderUpdate{
		ProviderSessionID: session.ID,
		Metadata: map[string]any{
			"stripe_event_id":   event.ID,
			"stripe_event_type": string(event.Type),
		},
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			// Delayed payment methods complete the session before the
			// money clears; the async events finish the story.
			update.Status = enums.PaymentStatusAuthorized
		} else {
			update.Status = enums.PaymentStatusPaid
		}
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		update.Status = enums.PaymentStatusPaid
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		update.Status = enums.PaymentStatusFailed
		reason := "async payment failed"
		update.FailureReason = &reason
	case stripe.EventTypeCheckoutSessionExpired:
		update.Status = enums.PaymentStatusCancelled
		reason := "checkout session expired"
		update.FailureReason = &reason
	}

	_, err := s.payments.ApplyProviderUpdate(ctx, update)
	return err
}
