// Package engine runs the trading state machine: analyze discovered
// tokens, then buy the ones the evaluator recommends, within the daily
// investment cap.
package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/evaluator"
	"solana-trading-bot/internal/jupiter"
	"solana-trading-bot/internal/ledger"
	"solana-trading-bot/internal/observability"
	"solana-trading-bot/internal/storage"
)

// SlippageBps is the swap slippage tolerance (1%).
const SlippageBps = 100

// usdcUnit converts USD amounts to USDC base units (6 decimals).
const usdcUnit = 1_000_000

// Swapper quotes and builds swap transactions.
type Swapper interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error)
}

// Options configures Engine.
type Options struct {
	Tokens       storage.TokenStore
	Analyses     storage.AnalysisStore
	Transactions storage.TransactionStore
	Evaluator    *evaluator.Evaluator
	Swapper      Swapper
	Ledger       ledger.Client
	Metrics      *observability.Metrics

	// MaxDailyInvestment is the UTC-day spending cap in USD.
	MaxDailyInvestment float64
	// FundingMint is the asset buys are funded from (USDC).
	FundingMint string
	// WalletPubkey signs the swaps.
	WalletPubkey string

	Logger *log.Logger
	Now    func() time.Time
}

// Engine coordinates analysis and order execution. Order execution is
// serialized: concurrent callers queue on an internal mutex so the
// daily cap cannot be raced past.
type Engine struct {
	opts Options

	buyMu sync.Mutex
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{opts: opts}
}

// AnalyzePending evaluates every token in status "new", stores the
// analysis, and advances the token to "analyzed". A persist failure on
// one token is logged and the token skipped; it stays "new" and is
// retried the next cycle. The error return is for the initial listing
// only.
func (e *Engine) AnalyzePending(ctx context.Context) ([]domain.TokenAnalysis, error) {
	status := domain.TokenStatusNew
	tokens, err := e.opts.Tokens.ListByStatus(ctx, &status, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list new tokens: %w", err)
	}
	if len(tokens) == 0 {
		e.opts.Logger.Printf("no new tokens to analyze")
		return nil, nil
	}
	e.opts.Logger.Printf("analyzing %d new tokens", len(tokens))

	analyses := make([]domain.TokenAnalysis, 0, len(tokens))
	for _, token := range tokens {
		analysis := e.opts.Evaluator.Evaluate(*token)

		if err := e.opts.Analyses.Insert(ctx, &analysis); err != nil {
			e.opts.Logger.Printf("save analysis for %s: %v", token.Address, err)
			continue
		}
		if err := e.opts.Tokens.UpdateStatus(ctx, token.Address, domain.TokenStatusAnalyzed); err != nil {
			e.opts.Logger.Printf("mark %s analyzed: %v", token.Address, err)
			continue
		}

		analyses = append(analyses, analysis)
		if e.opts.Metrics != nil {
			e.opts.Metrics.TokensAnalyzed.Inc()
		}

		verdict := "DO NOT BUY"
		if analysis.BuyRecommendation {
			verdict = "BUY"
		}
		e.opts.Logger.Printf("token %s analyzed: score=%.1f %s amount=$%.2f",
			token.Symbol, analysis.InvestmentScore, verdict, analysis.InvestmentAmount)
	}
	return analyses, nil
}

// ExecuteBuyOrders buys every recommended token in status "analyzed".
// Tokens without a recommendation move to "rejected". When the next
// buy would exceed the daily cap, execution halts for the rest of the
// batch; it does not skip to smaller orders.
func (e *Engine) ExecuteBuyOrders(ctx context.Context) ([]domain.Transaction, error) {
	e.buyMu.Lock()
	defer e.buyMu.Unlock()

	status := domain.TokenStatusAnalyzed
	tokens, err := e.opts.Tokens.ListByStatus(ctx, &status, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list analyzed tokens: %w", err)
	}
	if len(tokens) == 0 {
		e.opts.Logger.Printf("no analyzed tokens to process")
		return nil, nil
	}
	e.opts.Logger.Printf("processing %d analyzed tokens for buy orders", len(tokens))

	dayStart := e.opts.Now().UTC().Truncate(24 * time.Hour)
	dailyInvested, err := e.opts.Transactions.DailyInvestedTotal(ctx, dayStart)
	if err != nil {
		return nil, fmt.Errorf("daily invested total: %w", err)
	}

	var transactions []domain.Transaction
	for _, token := range tokens {
		analysis, err := e.opts.Analyses.Latest(ctx, token.Address)
		if err != nil {
			e.opts.Logger.Printf("no analysis found for %s (%s): %v", token.Symbol, token.Address, err)
			continue
		}

		if !analysis.BuyRecommendation {
			e.opts.Logger.Printf("token %s not recommended, rejecting", token.Symbol)
			if err := e.opts.Tokens.UpdateStatus(ctx, token.Address, domain.TokenStatusRejected); err != nil {
				e.opts.Logger.Printf("reject %s: %v", token.Address, err)
			}
			continue
		}

		if dailyInvested+analysis.InvestmentAmount > e.opts.MaxDailyInvestment {
			e.opts.Logger.Printf("daily investment cap reached ($%.2f/$%.2f), halting order execution",
				dailyInvested, e.opts.MaxDailyInvestment)
			if e.opts.Metrics != nil {
				e.opts.Metrics.DailyCapHalts.Inc()
			}
			break
		}

		usdcAmount := uint64(analysis.InvestmentAmount * usdcUnit)

		balance, err := e.opts.Ledger.TokenBalance(ctx, e.opts.FundingMint)
		if err != nil || balance < usdcAmount {
			e.opts.Logger.Printf("insufficient USDC for %s: need %d, have %d (err=%v)",
				token.Symbol, usdcAmount, balance, err)
			continue
		}

		e.opts.Logger.Printf("executing buy order for %s: $%.2f USDC", token.Symbol, analysis.InvestmentAmount)

		signature, err := e.swap(ctx, e.opts.FundingMint, token.Address, usdcAmount)
		if err != nil {
			e.opts.Logger.Printf("buy failed for %s: %v", token.Symbol, err)
			if e.opts.Metrics != nil {
				e.opts.Metrics.SwapFailures.Inc()
			}
			continue
		}

		tx := domain.Transaction{
			TokenAddress: token.Address,
			Type:         domain.TransactionTypeBuy,
			Amount:       float64(usdcAmount),
			PriceUSD:     token.PriceUSD,
			TotalUSD:     analysis.InvestmentAmount,
			Timestamp:    e.opts.Now().UTC(),
			TxSignature:  signature,
			Status:       domain.TransactionCompleted,
			Metadata: map[string]interface{}{
				"analysis_score": analysis.InvestmentScore,
				"reasons":        analysis.Reasons,
			},
		}
		// The swap already executed, so persist failures cannot undo the
		// buy; they are logged and the transaction still counts against
		// the cap and the batch result.
		if err := e.opts.Transactions.Insert(ctx, &tx); err != nil {
			e.opts.Logger.Printf("save buy transaction %s: %v", signature, err)
		}
		if err := e.opts.Tokens.UpdateStatus(ctx, token.Address, domain.TokenStatusBought); err != nil {
			e.opts.Logger.Printf("mark %s bought: %v", token.Address, err)
		}

		dailyInvested += analysis.InvestmentAmount
		transactions = append(transactions, tx)
		if e.opts.Metrics != nil {
			e.opts.Metrics.BuyOrders.Inc()
			e.opts.Metrics.InvestedUSD.Add(analysis.InvestmentAmount)
		}
		e.opts.Logger.Printf("bought %s, signature %s", token.Symbol, signature)
	}

	e.opts.Logger.Printf("order execution finished, %d transactions", len(transactions))
	return transactions, nil
}

// swap quotes, builds, and submits a swap, returning the signature.
func (e *Engine) swap(ctx context.Context, inputMint, outputMint string, amount uint64) (string, error) {
	quote, err := e.opts.Swapper.GetQuote(ctx, inputMint, outputMint, amount, SlippageBps)
	if err != nil {
		return "", fmt.Errorf("quote: %w", err)
	}

	encodedTx, err := e.opts.Swapper.BuildSwap(ctx, quote, e.opts.WalletPubkey)
	if err != nil {
		return "", fmt.Errorf("build swap: %w", err)
	}

	rawTx, err := base64.StdEncoding.DecodeString(encodedTx)
	if err != nil {
		return "", fmt.Errorf("decode swap transaction: %w", err)
	}

	signature, err := e.opts.Ledger.SubmitTransaction(ctx, rawTx)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	return signature, nil
}

// CycleResult summarizes one trading cycle.
type CycleResult struct {
	Analyzed int `json:"analyzed"`
	Bought   int `json:"bought"`
}

// RunTradingCycle analyzes pending tokens then executes buy orders.
// Failures are logged, never propagated: one bad cycle must not stop
// the loop.
func (e *Engine) RunTradingCycle(ctx context.Context) CycleResult {
	e.opts.Logger.Printf("starting trading cycle")
	var result CycleResult

	analyses, err := e.AnalyzePending(ctx)
	if err != nil {
		e.opts.Logger.Printf("trading cycle: analyze: %v", err)
	}
	result.Analyzed = len(analyses)

	transactions, err := e.ExecuteBuyOrders(ctx)
	if err != nil {
		e.opts.Logger.Printf("trading cycle: execute orders: %v", err)
	}
	result.Bought = len(transactions)

	e.opts.Logger.Printf("trading cycle completed: analyzed=%d bought=%d", result.Analyzed, result.Bought)
	return result
}
