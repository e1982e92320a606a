package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/verdantdigital/expressbuild/pkg/fulfillment"
)

type fakeFulfillmentReader struct {
	rec *fulfillment.Record
	err error
}

func (f *fakeFulfillmentReader) Get(ctx context.Context, id string) (*fulfillment.Record, error) {
	return f.rec, f.err
}

func TestStatusService_Lookup(t *testing.T) {
	updated := time.Date(2026, 3, 14, 9, 45, 0, 0, time.UTC)
	gw := &fakeGateway{intent: &stripe.PaymentIntent{
		ID:       "pi_123",
		Amount:   29900,
		Status:   stripe.PaymentIntentStatusSucceeded,
		Metadata: map[string]string{"businessName": "Smith Plumbing", "monthlyPlan": "99"},
	}}
	ledger := &fakeFulfillmentReader{rec: &fulfillment.Record{
		PaymentIntentID: "pi_123",
		Status:          fulfillment.StatusSucceeded,
		UpdatedAt:       updated,
	}}

	resp, err := NewStatusService(gw, ledger).Lookup(context.Background(), "pi_123")
	require.NoError(t, err)

	assert.Equal(t, "succeeded", resp.Status)
	assert.Equal(t, int64(29900), resp.Amount)
	assert.Equal(t, "Smith Plumbing", resp.Metadata["businessName"])
	require.NotNil(t, resp.Fulfillment)
	assert.Equal(t, "succeeded", resp.Fulfillment.Status)
	assert.Equal(t, "2026-03-14T09:45:00Z", resp.Fulfillment.UpdatedAt)
}

func TestStatusService_Lookup_NoLedgerRow(t *testing.T) {
	gw := &fakeGateway{intent: &stripe.PaymentIntent{ID: "pi_1", Amount: 29900, Status: stripe.PaymentIntentStatusProcessing}}

	for name, reader := range map[string]FulfillmentReader{
		"not found":   &fakeFulfillmentReader{err: fulfillment.ErrNotFound},
		"ledger down": &fakeFulfillmentReader{err: errors.New("db down")},
		"no ledger":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := NewStatusService(gw, reader).Lookup(context.Background(), "pi_1")
			require.NoError(t, err)
			assert.Nil(t, resp.Fulfillment)
			assert.NotNil(t, resp.Metadata, "metadata is always an object")
		})
	}
}

func TestStatusService_Lookup_InvalidID(t *testing.T) {
	gw := &fakeGateway{}
	svc := NewStatusService(gw, nil)

	for _, id := range []string{"", "cus_123", "../../v1/charges", "123"} {
		_, err := svc.Lookup(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidPaymentIntentID, id)
	}
	assert.Empty(t, gw.gets)
}

func TestStatusService_Lookup_ProcessorError(t *testing.T) {
	gw := &fakeGateway{getErr: errors.New("no such payment_intent")}

	_, err := NewStatusService(gw, nil).Lookup(context.Background(), "pi_missing")

	var procErr *ProcessorError
	assert.ErrorAs(t, err, &procErr)
}
