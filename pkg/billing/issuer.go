package billing

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v76"

	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/metrics"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

// IntentStore remembers which intent an idempotency key produced.
type IntentStore interface {
	RememberIntent(ctx context.Context, idempotencyKey, paymentIntentID string) error
	LookupIntent(ctx context.Context, idempotencyKey string) (string, bool, error)
}

// PendingRecorder opens a ledger row for a newly issued intent.
type PendingRecorder interface {
	CreatePending(ctx context.Context, rec fulfillment.Record) error
}

// Issuer creates payment intents for the fixed-price Express Build
type Issuer struct {
	gateway  Gateway
	validate *validator.Validate
	store    IntentStore
	ledger   PendingRecorder
	metrics  *metrics.Metrics
}

// NewIssuer creates a new issuer
func NewIssuer(gateway Gateway, validate *validator.Validate) *Issuer {
	if validate == nil {
		validate = validator.New()
	}
	return &Issuer{
		gateway:  gateway,
		validate: validate,
	}
}

// SetIntentStore sets the idempotency key store.
func (i *Issuer) SetIntentStore(s IntentStore) {
	i.store = s
}

// SetLedger sets the fulfillment ledger that receives pending rows.
func (i *Issuer) SetLedger(l PendingRecorder) {
	i.ledger = l
}

// SetMetrics sets the metrics sink.
func (i *Issuer) SetMetrics(m *metrics.Metrics) {
	i.metrics = m
}

// Create validates the request and creates a payment intent for it.
// The amount is checked first: anything but the fixed price is rejected whatever else
// the payload contains.
func (i *Issuer) Create(ctx context.Context, req models.CreatePaymentIntentRequest) (*models.CreatePaymentIntentResponse, error) {
	if req.Amount != nil && *req.Amount != ExpressBuildAmount {
		i.metrics.RecordPaymentIntentError("invalid_amount")
		return nil, ErrInvalidAmount
	}
	if req.Amount == nil || req.BusinessInfo == nil {
		i.metrics.RecordPaymentIntentError("missing_fields")
		return nil, ErrInvalidRequest
	}
	if err := i.validate.Struct(req.BusinessInfo); err != nil {
		i.metrics.RecordPaymentIntentError("missing_fields")
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	info := *req.BusinessInfo
	plan := MonthlyPlan(req.WantsGoogleAds)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(ExpressBuildAmount),
		Currency: stripe.String(Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		ReceiptEmail: stripe.String(info.Email),
		Description:  stripe.String(Description(info.BusinessName)),
	}
	for k, v := range Metadata(info, req.WantsGoogleAds) {
		params.AddMetadata(k, v)
	}

	if req.IdempotencyKey != "" {
		if pi := i.replay(ctx, req.IdempotencyKey); pi != nil {
			return &models.CreatePaymentIntentResponse{
				ClientSecret:    pi.ClientSecret,
				PaymentIntentID: pi.ID,
			}, nil
		}
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := i.gateway.CreatePaymentIntent(ctx, params)
	if err != nil {
		i.metrics.RecordPaymentIntentError("processor")
		return nil, &ProcessorError{Op: "create payment intent", Err: err}
	}

	log.Printf("💳 Payment intent created: %s, business=%s, plan=%d", pi.ID, info.BusinessName, plan)
	i.metrics.RecordPaymentIntentCreated(strconv.Itoa(plan))

	if i.store != nil && req.IdempotencyKey != "" {
		if err := i.store.RememberIntent(ctx, req.IdempotencyKey, pi.ID); err != nil {
			log.Printf("⚠️  Failed to remember idempotency key for %s: %v", pi.ID, err)
		}
	}

	if i.ledger != nil {
		err := i.ledger.CreatePending(ctx, fulfillment.Record{
			PaymentIntentID: pi.ID,
			Amount:          ExpressBuildAmount,
			Currency:        Currency,
			BusinessName:    info.BusinessName,
			Email:           info.Email,
			MonthlyPlan:     plan,
		})
		if err != nil {
			// The webhook creates the row if it is still missing
			log.Printf("⚠️  Failed to record pending fulfillment for %s: %v", pi.ID, err)
		}
	}

	return &models.CreatePaymentIntentResponse{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	}, nil
}

// replay returns the intent an idempotency key already produced, or nil when a new one
// must be created. Lookup failures fall through to creation.
func (i *Issuer) replay(ctx context.Context, key string) *stripe.PaymentIntent {
	if i.store == nil {
		return nil
	}
	id, found, err := i.store.LookupIntent(ctx, key)
	if err != nil {
		log.Printf("⚠️  Idempotency lookup failed: %v", err)
		return nil
	}
	if !found {
		return nil
	}

	pi, err := i.gateway.GetPaymentIntent(ctx, id)
	if err != nil {
		log.Printf("⚠️  Failed to retrieve replayed payment intent %s: %v", id, err)
		return nil
	}
	if pi.Status == stripe.PaymentIntentStatusCanceled {
		log.Printf("🔁 Payment intent %s for replayed key was canceled, issuing a new one", id)
		return nil
	}

	log.Printf("🔁 Replayed payment intent request, returning %s", pi.ID)
	return pi
}
