package billing

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
	"github.com/verdantdigital/expressbuild/pkg/models"
)

// FulfillmentReader reads the ledger row of an intent.
type FulfillmentReader interface {
	Get(ctx context.Context, paymentIntentID string) (*fulfillment.Record, error)
}

// StatusService answers payment status lookups
type StatusService struct {
	gateway Gateway
	ledger  FulfillmentReader
}

// NewStatusService creates a status service. ledger may be nil.
func NewStatusService(gateway Gateway, ledger FulfillmentReader) *StatusService {
	return &StatusService{gateway: gateway, ledger: ledger}
}

// Lookup returns the processor's view of an intent, plus the ledger's when known
func (s *StatusService) Lookup(ctx context.Context, paymentIntentID string) (*models.PaymentStatusResponse, error) {
	if !strings.HasPrefix(paymentIntentID, "pi_") || len(paymentIntentID) > 255 {
		return nil, ErrInvalidPaymentIntentID
	}

	pi, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, &ProcessorError{Op: "retrieve payment intent", Err: err}
	}

	metadata := pi.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	resp := &models.PaymentStatusResponse{
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Metadata: metadata,
	}

	if s.ledger != nil {
		rec, err := s.ledger.Get(ctx, paymentIntentID)
		switch {
		case err == nil:
			resp.Fulfillment = &models.FulfillmentInfo{
				Status:     string(rec.Status),
				Flagged:    rec.Flagged,
				FlagReason: rec.FlagReason,
				UpdatedAt:  rec.UpdatedAt.UTC().Format(time.RFC3339),
			}
		case errors.Is(err, fulfillment.ErrNotFound):
			// issued before the ledger existed, or its pending write failed
		default:
			log.Printf("⚠️  Failed to read fulfillment for %s: %v", paymentIntentID, err)
		}
	}

	return resp, nil
}
