package cache

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryEntries bounds each in-process map
const DefaultMemoryEntries = 10000

// MemoryPaymentStore is the in-process stand-in for PaymentStore when no Redis is
// configured. State is lost on restart and is not shared between instances.
type MemoryPaymentStore struct {
	mu      sync.Mutex
	intents *expirable.LRU[string, string]
	events  *expirable.LRU[string, struct{}]
}

// NewMemoryPaymentStore creates a store holding up to size entries per map
func NewMemoryPaymentStore(size int) *MemoryPaymentStore {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	return &MemoryPaymentStore{
		intents: expirable.NewLRU[string, string](size, nil, IdempotencyTTL),
		events:  expirable.NewLRU[string, struct{}](size, nil, EventTTL),
	}
}

// RememberIntent records which payment intent an idempotency key produced
func (s *MemoryPaymentStore) RememberIntent(_ context.Context, idempotencyKey, paymentIntentID string) error {
	s.intents.Add(idempotencyKey, paymentIntentID)
	return nil
}

// LookupIntent returns the payment intent previously issued for an idempotency key
func (s *MemoryPaymentStore) LookupIntent(_ context.Context, idempotencyKey string) (string, bool, error) {
	id, ok := s.intents.Get(idempotencyKey)
	return id, ok, nil
}

// ClaimEvent marks a webhook event as being processed
func (s *MemoryPaymentStore) ClaimEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events.Contains(eventID) {
		return false, nil
	}
	s.events.Add(eventID, struct{}{})
	return true, nil
}

// ReleaseEvent drops a claim
func (s *MemoryPaymentStore) ReleaseEvent(_ context.Context, eventID string) error {
	s.events.Remove(eventID)
	return nil
}
