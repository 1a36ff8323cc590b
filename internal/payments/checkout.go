package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/stowpoint/stowpoint-backend/pkg/stripe"
)

// StripeCheckoutClient exposes the subset of Stripe operations the payment
// service needs to start a hosted checkout.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeCheckoutWrapper struct{}

// NewStripeCheckoutClient wraps the provided Stripe client so the payment
// service can be tested without network calls.
func NewStripeCheckoutClient(api *pkgstripe.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeCheckoutWrapper{}
}

func (w *stripeCheckoutWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}
