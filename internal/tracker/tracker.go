// Package tracker watches open positions and sells automatically when
// a token reaches three times its entry price.
package tracker

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/engine"
	"solana-trading-bot/internal/ledger"
	"solana-trading-bot/internal/observability"
	"solana-trading-bot/internal/storage"
)

// TakeProfitRatio triggers the automatic sell.
const TakeProfitRatio = 3.0

// splUnit converts raw SPL amounts assuming 9 decimals, the common
// case for meme tokens on Solana.
const splUnit = 1_000_000_000

// DefaultCheckInterval is how often open positions are re-checked.
const DefaultCheckInterval = 60 * time.Second

// Options configures Tracker.
type Options struct {
	Tokens       storage.TokenStore
	Transactions storage.TransactionStore
	Swapper      engine.Swapper
	Ledger       ledger.Client
	Metrics      *observability.Metrics

	// FundingMint is what positions are sold back into (USDC).
	FundingMint string
	// WalletPubkey signs the swaps.
	WalletPubkey string

	CheckInterval time.Duration
	Logger        *log.Logger
	Now           func() time.Time
}

// Tracker periodically checks bought tokens against their entry price.
type Tracker struct {
	opts Options
}

// New creates a Tracker.
func New(opts Options) *Tracker {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Tracker{opts: opts}
}

// CheckPositionsOnce inspects every token in status "bought" and sells
// the ones at or past the take-profit ratio. Per-position failures are
// logged and skipped; the pass always completes.
func (t *Tracker) CheckPositionsOnce(ctx context.Context) []domain.Transaction {
	status := domain.TokenStatusBought
	tokens, err := t.opts.Tokens.ListByStatus(ctx, &status, 0, 0)
	if err != nil {
		t.opts.Logger.Printf("list open positions: %v", err)
		return nil
	}
	if len(tokens) == 0 {
		t.opts.Logger.Printf("no open positions to check")
		return nil
	}
	t.opts.Logger.Printf("checking %d open positions", len(tokens))

	var sells []domain.Transaction
	for _, token := range tokens {
		tx, sold := t.checkPosition(ctx, token)
		if sold {
			sells = append(sells, tx)
		}
	}

	if t.opts.Metrics != nil {
		t.opts.Metrics.PositionChecks.Inc()
	}
	t.opts.Logger.Printf("position check complete, %d tokens sold", len(sells))
	return sells
}

// checkPosition evaluates one position and sells it when it hit x3.
func (t *Tracker) checkPosition(ctx context.Context, token *domain.Token) (domain.Transaction, bool) {
	buy, err := t.opts.Transactions.LatestBuy(ctx, token.Address)
	if err != nil {
		t.opts.Logger.Printf("no buy transaction for %s (%s): %v", token.Symbol, token.Address, err)
		return domain.Transaction{}, false
	}

	if token.PriceUSD <= 0 {
		t.opts.Logger.Printf("no current price for %s (%s)", token.Symbol, token.Address)
		return domain.Transaction{}, false
	}

	entryPrice := buy.PriceUSD
	ratio := 0.0
	if entryPrice > 0 {
		ratio = token.PriceUSD / entryPrice
	}
	t.opts.Logger.Printf("position %s: entry=$%.10f current=$%.10f ratio=%.2fx",
		token.Symbol, entryPrice, token.PriceUSD, ratio)
	if t.opts.Metrics != nil {
		t.opts.Metrics.PositionRatio.Observe(ratio)
	}

	if ratio < TakeProfitRatio {
		return domain.Transaction{}, false
	}
	t.opts.Logger.Printf("position %s reached x%.2f, selling", token.Symbol, ratio)

	balance, err := t.opts.Ledger.TokenBalance(ctx, token.Address)
	if err != nil || balance == 0 {
		t.opts.Logger.Printf("no balance to sell for %s (balance=%d err=%v)", token.Symbol, balance, err)
		return domain.Transaction{}, false
	}

	// Claim the position before touching the chain: a concurrent pass
	// that claimed first wins here and we never submit a second swap.
	claimed, err := t.opts.Tokens.UpdateStatusIf(ctx, token.Address, domain.TokenStatusBought, domain.TokenStatusSold)
	if err != nil {
		t.opts.Logger.Printf("claim position %s for sell: %v", token.Address, err)
		return domain.Transaction{}, false
	}
	if !claimed {
		t.opts.Logger.Printf("position %s already closed elsewhere", token.Symbol)
		return domain.Transaction{}, false
	}

	signature, err := t.sell(ctx, token.Address, balance)
	if err != nil {
		t.opts.Logger.Printf("sell failed for %s: %v", token.Symbol, err)
		if t.opts.Metrics != nil {
			t.opts.Metrics.SwapFailures.Inc()
		}
		// Release the claim so the next pass retries the sell.
		if _, revertErr := t.opts.Tokens.UpdateStatusIf(ctx, token.Address, domain.TokenStatusSold, domain.TokenStatusBought); revertErr != nil {
			t.opts.Logger.Printf("reopen position %s after failed sell: %v", token.Address, revertErr)
		}
		return domain.Transaction{}, false
	}

	tx := domain.Transaction{
		TokenAddress: token.Address,
		Type:         domain.TransactionTypeSell,
		Amount:       float64(balance),
		PriceUSD:     token.PriceUSD,
		TotalUSD:     token.PriceUSD * (float64(balance) / splUnit),
		Timestamp:    t.opts.Now().UTC(),
		TxSignature:  signature,
		Status:       domain.TransactionCompleted,
		Metadata: map[string]interface{}{
			"entry_price": entryPrice,
			"price_ratio": ratio,
			"reason":      domain.SellReasonAutomaticX3,
		},
	}
	// The swap already happened, so a persist failure must not undo the
	// exit; it is logged and the sell is still reported.
	if err := t.opts.Transactions.Insert(ctx, &tx); err != nil {
		t.opts.Logger.Printf("save sell transaction %s: %v", signature, err)
	}

	if t.opts.Metrics != nil {
		t.opts.Metrics.SellOrders.Inc()
	}
	t.opts.Logger.Printf("sold %s at %.2fx, signature %s", token.Symbol, ratio, signature)
	return tx, true
}

// sell swaps the full token balance back to the funding mint.
func (t *Tracker) sell(ctx context.Context, mint string, amount uint64) (string, error) {
	quote, err := t.opts.Swapper.GetQuote(ctx, mint, t.opts.FundingMint, amount, engine.SlippageBps)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}

	encodedTx, err := t.opts.Swapper.BuildSwap(ctx, quote, t.opts.WalletPubkey)
	if err != nil {
		return "", fmt.Errorf("build swap: %w", err)
	}

	rawTx, err := base64.StdEncoding.DecodeString(encodedTx)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}

	return t.opts.Ledger.SubmitTransaction(ctx, rawTx)
}

// Run checks positions on the configured interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) {
	t.opts.Logger.Printf("position tracking started, interval %s", t.opts.CheckInterval)

	ticker := time.NewTicker(t.opts.CheckInterval)
	defer ticker.Stop()

	for {
		t.CheckPositionsOnce(ctx)

		select {
		case <-ctx.Done():
			t.opts.Logger.Printf("position tracking stopped")
			return
		case <-ticker.C:
		}
	}
}
