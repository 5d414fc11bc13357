package storage

import (
	"context"
	"time"

	"solana-trading-bot/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Upsert inserts a token or, if the address exists, refreshes its market
	// fields (price, liquidity, volume, pools count, metadata) and UpdatedAt
	// without touching Status or CreatedAt. Returns true if a new row was created.
	Upsert(ctx context.Context, t *domain.Token) (bool, error)

	// Get retrieves a token by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.Token, error)

	// Exists reports whether a token with the given address is stored.
	Exists(ctx context.Context, address string) (bool, error)

	// ListByStatus retrieves tokens with the given status ordered by
	// CreatedAt ASC. A nil status matches all tokens.
	ListByStatus(ctx context.Context, status *domain.TokenStatus, limit, offset int) ([]*domain.Token, error)

	// UpdateStatus sets the token status unconditionally.
	UpdateStatus(ctx context.Context, address string, status domain.TokenStatus) error

	// UpdateStatusIf advances the status only when the current status matches
	// from. Returns false when the guard did not match (no update performed).
	UpdateStatusIf(ctx context.Context, address string, from, to domain.TokenStatus) (bool, error)
}

// AnalysisStore provides access to token_analyses storage. Append-only.
type AnalysisStore interface {
	// Insert adds a new analysis row.
	Insert(ctx context.Context, a *domain.TokenAnalysis) error

	// Latest retrieves the most recent analysis for a token by
	// AnalysisTimestamp. Returns ErrNotFound if none exists.
	Latest(ctx context.Context, tokenAddress string) (*domain.TokenAnalysis, error)
}

// TransactionStore provides access to transactions storage. Append-only,
// keyed by tx_signature.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if the
	// signature already exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// ListByToken retrieves all transactions for a token ordered by
	// Timestamp ASC.
	ListByToken(ctx context.Context, tokenAddress string) ([]*domain.Transaction, error)

	// LatestBuy retrieves the most recent buy transaction for a token.
	// Returns ErrNotFound if none exists.
	LatestBuy(ctx context.Context, tokenAddress string) (*domain.Transaction, error)

	// DailyInvestedTotal sums TotalUSD over buy transactions with
	// Timestamp >= dayStart.
	DailyInvestedTotal(ctx context.Context, dayStart time.Time) (float64, error)
}

// PricePoint is one observed market snapshot for a token.
type PricePoint struct {
	TokenAddress string    `json:"token_address"`
	ObservedAt   time.Time `json:"observed_at"`
	PriceUSD     float64   `json:"price_usd"`
	LiquidityUSD float64   `json:"liquidity_usd"`
	Volume24h    float64   `json:"volume_24h"`
}

// PriceHistoryStore provides access to the price_history timeseries.
type PriceHistoryStore interface {
	// Insert appends one price observation.
	Insert(ctx context.Context, p *PricePoint) error

	// ListByToken retrieves observations for a token since the given time,
	// ordered by ObservedAt ASC.
	ListByToken(ctx context.Context, tokenAddress string, since time.Time) ([]*PricePoint, error)
}
