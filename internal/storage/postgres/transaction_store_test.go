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

func testTransaction(signature string, txType domain.TransactionType, totalUSD float64, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		TokenAddress: "TokenA",
		Type:         txType,
		Amount:       5_000_000,
		PriceUSD:     0.5,
		TotalUSD:     totalUSD,
		Timestamp:    ts,
		TxSignature:  signature,
		Status:       domain.TransactionCompleted,
		Metadata:     map[string]interface{}{"analysis_score": 80.0},
	}
}

func TestTransactionStore_InsertAndListByToken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	buy := testTransaction("SigBuy", domain.TransactionTypeBuy, 10, base.Add(-time.Hour))
	sell := testTransaction("SigSell", domain.TransactionTypeSell, 30, base)

	require.NoError(t, store.Insert(ctx, buy))
	require.NoError(t, store.Insert(ctx, sell))

	txs, err := store.ListByToken(ctx, "TokenA")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Ordered by timestamp ASC.
	assert.Equal(t, "SigBuy", txs[0].TxSignature)
	assert.Equal(t, domain.TransactionTypeBuy, txs[0].Type)
	assert.Equal(t, "SigSell", txs[1].TxSignature)
	assert.Equal(t, 80.0, txs[0].Metadata["analysis_score"])
	assert.True(t, txs[1].Timestamp.Equal(base))
}

func TestTransactionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := testTransaction("SigDup", domain.TransactionTypeBuy, 10, time.Now().UTC())
	require.NoError(t, store.Insert(ctx, tx))

	err := store.Insert(ctx, tx)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_LatestBuy(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := testTransaction("SigBuy1", domain.TransactionTypeBuy, 10, base.Add(-2*time.Hour))
	first.PriceUSD = 0.10
	second := testTransaction("SigBuy2", domain.TransactionTypeBuy, 20, base.Add(-time.Hour))
	second.PriceUSD = 0.20
	sell := testTransaction("SigSell", domain.TransactionTypeSell, 5, base)

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, sell))

	latest, err := store.LatestBuy(ctx, "TokenA")
	require.NoError(t, err)
	assert.Equal(t, "SigBuy2", latest.TxSignature)
	assert.Equal(t, 0.20, latest.PriceUSD)

	_, err = store.LatestBuy(ctx, "Missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_DailyInvestedTotal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)

	today := testTransaction("SigToday", domain.TransactionTypeBuy, 150, dayStart.Add(2*time.Hour))
	alsoToday := testTransaction("SigToday2", domain.TransactionTypeBuy, 50, dayStart.Add(3*time.Hour))
	yesterday := testTransaction("SigYesterday", domain.TransactionTypeBuy, 999, dayStart.Add(-time.Hour))
	sellToday := testTransaction("SigSellToday", domain.TransactionTypeSell, 400, dayStart.Add(4*time.Hour))

	for _, tx := range []*domain.Transaction{today, alsoToday, yesterday, sellToday} {
		require.NoError(t, store.Insert(ctx, tx))
	}

	// Only today's buys count toward the cap.
	total, err := store.DailyInvestedTotal(ctx, dayStart)
	require.NoError(t, err)
	assert.Equal(t, 200.0, total)
}

func TestTransactionStore_DailyInvestedTotalEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)

	total, err := store.DailyInvestedTotal(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, total)
}
