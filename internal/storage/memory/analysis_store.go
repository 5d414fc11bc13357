package memory

import (
	"context"
	"sync"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// AnalysisStore is an in-memory implementation of storage.AnalysisStore.
type AnalysisStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TokenAnalysis // keyed by token address
}

// NewAnalysisStore creates a new in-memory analysis store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		data: make(map[string][]*domain.TokenAnalysis),
	}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

// Insert adds a new analysis row.
func (s *AnalysisStore) Insert(_ context.Context, a *domain.TokenAnalysis) error {
	if a == nil || a.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	cp.Reasons = append([]string(nil), a.Reasons...)
	s.data[a.TokenAddress] = append(s.data[a.TokenAddress], &cp)
	return nil
}

// Latest retrieves the most recent analysis for a token by AnalysisTimestamp.
func (s *AnalysisStore) Latest(_ context.Context, tokenAddress string) (*domain.TokenAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.data[tokenAddress]
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}

	latest := rows[0]
	for _, a := range rows[1:] {
		if a.AnalysisTimestamp.After(latest.AnalysisTimestamp) {
			latest = a
		}
	}

	cp := *latest
	cp.Reasons = append([]string(nil), latest.Reasons...)
	return &cp, nil
}
