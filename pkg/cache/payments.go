package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	idempotencyPrefix = "checkout:idem:"
	eventPrefix       = "stripe:event:"

	// IdempotencyTTL matches the window Stripe keeps idempotency keys.
	IdempotencyTTL = 24 * time.Hour
	// EventTTL covers Stripe's retry horizon for undelivered webhooks.
	EventTTL = 72 * time.Hour
)

// PaymentStore keeps the short-lived payment bookkeeping that must survive restarts
// but not outlive the processor's own retry windows.
type PaymentStore struct {
	client *Client
}

// NewPaymentStore wraps a Redis client
func NewPaymentStore(client *Client) *PaymentStore {
	return &PaymentStore{client: client}
}

// RememberIntent records which payment intent an idempotency key produced
func (s *PaymentStore) RememberIntent(ctx context.Context, idempotencyKey, paymentIntentID string) error {
	if err := s.client.Set(ctx, idempotencyPrefix+idempotencyKey, paymentIntentID, IdempotencyTTL); err != nil {
		return fmt.Errorf("failed to remember intent for key: %w", err)
	}
	return nil
}

// LookupIntent returns the payment intent previously issued for an idempotency key
func (s *PaymentStore) LookupIntent(ctx context.Context, idempotencyKey string) (string, bool, error) {
	id, err := s.client.Get(ctx, idempotencyPrefix+idempotencyKey)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return id, true, nil
}

// ClaimEvent marks a webhook event as being processed. It returns false when the
// event was already claimed by an earlier delivery.
func (s *PaymentStore) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, eventPrefix+eventID, time.Now().Unix(), EventTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return ok, nil
}

// ReleaseEvent drops a claim so a redelivery of the event is processed again
func (s *PaymentStore) ReleaseEvent(ctx context.Context, eventID string) error {
	return s.client.Delete(ctx, eventPrefix+eventID)
}
