package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/storage"
)

func TestAnalysisStore_InsertAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)

	earlier := &domain.TokenAnalysis{
		TokenAddress:      "TokenA",
		AnalysisTimestamp: base.Add(-time.Hour),
		InvestmentScore:   40,
		InvestmentAmount:  1,
		BuyRecommendation: false,
		Reasons:           []string{"liquidity too low"},
	}
	latest := &domain.TokenAnalysis{
		TokenAddress:      "TokenA",
		AnalysisTimestamp: base,
		InvestmentScore:   85,
		InvestmentAmount:  10,
		BuyRecommendation: true,
		Reasons:           []string{"liquidity ok", "volume ok"},
	}

	require.NoError(t, store.Insert(ctx, earlier))
	require.NoError(t, store.Insert(ctx, latest))

	retrieved, err := store.Latest(ctx, "TokenA")
	require.NoError(t, err)

	assert.Equal(t, "TokenA", retrieved.TokenAddress)
	assert.True(t, retrieved.AnalysisTimestamp.Equal(base))
	assert.Equal(t, 85.0, retrieved.InvestmentScore)
	assert.Equal(t, 10.0, retrieved.InvestmentAmount)
	assert.True(t, retrieved.BuyRecommendation)
	assert.Equal(t, []string{"liquidity ok", "volume ok"}, retrieved.Reasons)
}

func TestAnalysisStore_LatestNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisStore(pool)

	_, err := store.Latest(context.Background(), "Missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAnalysisStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAnalysisStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.TokenAnalysis{}), storage.ErrInvalidInput)
}
