package billing

import (
	"context"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// Gateway is the part of the processor API the checkout uses
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

// StripeGateway talks to Stripe with a secret key
type StripeGateway struct {
	client *paymentintent.Client
}

// NewStripeGateway creates a gateway. A nil backend uses Stripe's API backend.
func NewStripeGateway(secretKey string, backend stripe.Backend) *StripeGateway {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeGateway{
		client: &paymentintent.Client{B: backend, Key: secretKey},
	}
}

// CreatePaymentIntent creates a payment intent
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return g.client.New(params)
}

// GetPaymentIntent retrieves a payment intent by id
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return g.client.Get(id, params)
}
