package postgres

import (
	"context"
	"fmt"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using PostgreSQL.
type AnalysisStore struct {
	pool *Pool
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(pool *Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

// Insert adds a new analysis row.
func (s *AnalysisStore) Insert(ctx context.Context, a *domain.TokenAnalysis) error {
	if a == nil || a.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_analyses (
			token_address, analysis_timestamp, investment_score,
			investment_amount, buy_recommendation, reasons
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		a.TokenAddress,
		a.AnalysisTimestamp,
		a.InvestmentScore,
		a.InvestmentAmount,
		a.BuyRecommendation,
		a.Reasons,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// Latest retrieves the most recent analysis for a token.
func (s *AnalysisStore) Latest(ctx context.Context, tokenAddress string) (*domain.TokenAnalysis, error) {
	query := `
		SELECT token_address, analysis_timestamp, investment_score,
			investment_amount, buy_recommendation, reasons
		FROM token_analyses
		WHERE token_address = $1
		ORDER BY analysis_timestamp DESC
		LIMIT 1
	`

	var a domain.TokenAnalysis
	err := s.pool.QueryRow(ctx, query, tokenAddress).Scan(
		&a.TokenAddress,
		&a.AnalysisTimestamp,
		&a.InvestmentScore,
		&a.InvestmentAmount,
		&a.BuyRecommendation,
		&a.Reasons,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest analysis: %w", err)
	}
	return &a, nil
}
