package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/paymentmethod"
)

// Card is the card used to pay. Token (for example from a test card or a
// tokenization step) takes precedence over raw card fields.
type Card struct {
	Token    string
	Number   string
	ExpMonth int64
	ExpYear  int64
	CVC      string
}

// StripeConfirmer confirms payment intents with the publishable key and client
// secret, the same calls a browser integration makes.
type StripeConfirmer struct {
	methods paymentmethod.Client
	intents paymentintent.Client
}

// NewStripeConfirmer creates a confirmer. A nil backend uses the default Stripe API backend.
func NewStripeConfirmer(publishableKey string, backend stripe.Backend) *StripeConfirmer {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeConfirmer{
		methods: paymentmethod.Client{B: backend, Key: publishableKey},
		intents: paymentintent.Client{B: backend, Key: publishableKey},
	}
}

// ConfirmCardPayment attaches card and details to the intent behind clientSecret
// and confirms it. Anything but a succeeded intent is a *ConfirmationError.
func (c *StripeConfirmer) ConfirmCardPayment(ctx context.Context, clientSecret string, card Card, details BillingDetails) error {
	intentID, ok := intentIDFromSecret(clientSecret)
	if !ok {
		return &ConfirmationError{Message: "Payment failed", Code: "invalid_client_secret"}
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: cardParams(card),
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name:  stripe.String(details.Name),
			Email: stripe.String(details.Email),
			Phone: stripe.String(details.Phone),
			Address: &stripe.AddressParams{
				Line1: stripe.String(details.AddressLine1),
			},
		},
	}
	pmParams.Context = ctx

	pm, err := c.methods.New(pmParams)
	if err != nil {
		return confirmationFailure(err)
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(pm.ID),
	}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)

	pi, err := c.intents.Confirm(intentID, params)
	if err != nil {
		return confirmationFailure(err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ConfirmationError{Code: string(pi.Status), Message: "Payment was not successful"}
	}
	return nil
}

func cardParams(card Card) *stripe.PaymentMethodCardParams {
	if card.Token != "" {
		return &stripe.PaymentMethodCardParams{Token: stripe.String(card.Token)}
	}
	return &stripe.PaymentMethodCardParams{
		Number:   stripe.String(card.Number),
		ExpMonth: stripe.Int64(card.ExpMonth),
		ExpYear:  stripe.Int64(card.ExpYear),
		CVC:      stripe.String(card.CVC),
	}
}

// confirmationFailure maps processor-reported errors to *ConfirmationError and
// everything else to *NetworkError.
func confirmationFailure(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = "Payment failed"
		}
		code := string(stripeErr.Code)
		if stripeErr.DeclineCode != "" {
			code = string(stripeErr.DeclineCode)
		}
		return &ConfirmationError{Code: code, Message: msg}
	}
	return &NetworkError{Err: err}
}

func intentIDFromSecret(clientSecret string) (string, bool) {
	id, _, found := strings.Cut(clientSecret, "_secret_")
	if !found || !strings.HasPrefix(id, "pi_") {
		return "", false
	}
	return id, true
}
