package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trading-bot/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*storage.PricePoint // keyed by token address
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string][]*storage.PricePoint),
	}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Insert appends one price observation.
func (s *PriceHistoryStore) Insert(_ context.Context, p *storage.PricePoint) error {
	if p == nil || p.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.data[p.TokenAddress] = append(s.data[p.TokenAddress], &cp)
	return nil
}

// ListByToken retrieves observations for a token since the given time.
func (s *PriceHistoryStore) ListByToken(_ context.Context, tokenAddress string, since time.Time) ([]*storage.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PricePoint
	for _, p := range s.data[tokenAddress] {
		if p.ObservedAt.Before(since) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}
