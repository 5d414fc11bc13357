package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by tx_signature
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Insert adds a new transaction. Returns ErrDuplicateKey if the signature exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.TxSignature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.TxSignature]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *tx
	cp.Metadata = cloneMetadata(tx.Metadata)
	s.data[tx.TxSignature] = &cp
	return nil
}

// ListByToken retrieves all transactions for a token ordered by Timestamp ASC.
func (s *TransactionStore) ListByToken(_ context.Context, tokenAddress string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.TokenAddress == tokenAddress {
			cp := *tx
			cp.Metadata = cloneMetadata(tx.Metadata)
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// LatestBuy retrieves the most recent buy transaction for a token.
func (s *TransactionStore) LatestBuy(_ context.Context, tokenAddress string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Transaction
	for _, tx := range s.data {
		if tx.TokenAddress != tokenAddress || tx.Type != domain.TransactionTypeBuy {
			continue
		}
		if latest == nil || tx.Timestamp.After(latest.Timestamp) {
			latest = tx
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	cp := *latest
	cp.Metadata = cloneMetadata(latest.Metadata)
	return &cp, nil
}

// DailyInvestedTotal sums TotalUSD over buy transactions since dayStart.
func (s *TransactionStore) DailyInvestedTotal(_ context.Context, dayStart time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, tx := range s.data {
		if tx.Type == domain.TransactionTypeBuy && !tx.Timestamp.Before(dayStart) {
			total += tx.TotalUSD
		}
	}
	return total, nil
}
