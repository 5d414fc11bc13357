package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Token // keyed by address
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.Token),
	}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert inserts a token or refreshes market fields of an existing one.
func (s *TokenStore) Upsert(_ context.Context, t *domain.Token) (bool, error) {
	if t == nil || t.Address == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[t.Address]
	if !ok {
		cp := cloneToken(t)
		if cp.Status == "" {
			cp.Status = domain.TokenStatusNew
		}
		s.data[t.Address] = cp
		return true, nil
	}

	// Refresh market data only; status and creation time are preserved.
	existing.Name = t.Name
	existing.Symbol = t.Symbol
	existing.PriceUSD = t.PriceUSD
	existing.Liquidity = t.Liquidity
	existing.Volume24h = t.Volume24h
	existing.LiquidityPoolsCount = t.LiquidityPoolsCount
	existing.HasProfile = t.HasProfile
	existing.BoosterActive = t.BoosterActive
	existing.Metadata = cloneMetadata(t.Metadata)
	existing.UpdatedAt = time.Now().UTC()
	return false, nil
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, address string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneToken(t), nil
}

// Exists reports whether a token with the given address is stored.
func (s *TokenStore) Exists(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[address]
	return ok, nil
}

// ListByStatus retrieves tokens with the given status ordered by CreatedAt ASC.
func (s *TokenStore) ListByStatus(_ context.Context, status *domain.TokenStatus, limit, offset int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, t := range s.data {
		if status != nil && t.Status != *status {
			continue
		}
		result = append(result, cloneToken(t))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Address < result[j].Address
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// UpdateStatus sets the token status unconditionally.
func (s *TokenStore) UpdateStatus(_ context.Context, address string, status domain.TokenStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[address]
	if !ok {
		return storage.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateStatusIf advances the status only when the current status matches from.
func (s *TokenStore) UpdateStatusIf(_ context.Context, address string, from, to domain.TokenStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data[address]
	if !ok {
		return false, storage.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func cloneToken(t *domain.Token) *domain.Token {
	cp := *t
	cp.Metadata = cloneMetadata(t.Metadata)
	return &cp
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
