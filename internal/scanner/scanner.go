// Package scanner discovers new Solana tokens and keeps market data
// for known ones fresh.
package scanner

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"solana-trading-bot/internal/dexscreener"
	"solana-trading-bot/internal/domain"
	"solana-trading-bot/internal/observability"
	"solana-trading-bot/internal/storage"
)

// DefaultScanInterval is the pause between scan cycles.
const DefaultScanInterval = 60 * time.Second

// DefaultMaxAge bounds how old a pair may be to count as recent.
const DefaultMaxAge = 24 * time.Hour

// maxJitter randomizes the scan interval to avoid a predictable
// request pattern against the upstream API.
const maxJitter = 5 * time.Second

// Discoverer finds and enriches tokens. *dexscreener.Client satisfies it.
type Discoverer interface {
	GetRecentTokens(ctx context.Context, chainID string, maxAge time.Duration) ([]domain.Token, error)
	GetTokenDetails(ctx context.Context, chainID, tokenAddress string) (*domain.Token, error)
}

// Options configures Scanner.
type Options struct {
	Tokens    storage.TokenStore
	Prices    storage.PriceHistoryStore // nil disables the timeseries
	Discovery Discoverer
	Metrics   *observability.Metrics

	Chain        string
	MaxAge       time.Duration
	ScanInterval time.Duration

	Logger *log.Logger
	Now    func() time.Time
	Jitter func() time.Duration
}

// Scanner runs discovery cycles against DexScreener.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.Chain == "" {
		opts.Chain = dexscreener.ChainSolana
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = DefaultScanInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Jitter == nil {
		opts.Jitter = func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		}
	}
	return &Scanner{opts: opts}
}

// ScanOnce discovers recent tokens. Unknown tokens are enriched with
// full details and stored in status "new"; known tokens only get their
// market fields refreshed, never their status.
func (s *Scanner) ScanOnce(ctx context.Context) ([]domain.Token, error) {
	s.opts.Logger.Printf("scanning for new tokens")
	start := s.opts.Now()

	discovered, err := s.opts.Discovery.GetRecentTokens(ctx, s.opts.Chain, s.opts.MaxAge)
	if err != nil {
		if s.opts.Metrics != nil {
			s.opts.Metrics.ScanErrors.Inc()
		}
		return nil, fmt.Errorf("recent tokens: %w", err)
	}

	var newTokens []domain.Token
	for _, token := range discovered {
		exists, err := s.opts.Tokens.Exists(ctx, token.Address)
		if err != nil {
			s.opts.Logger.Printf("check %s: %v", token.Address, err)
			continue
		}

		if exists {
			// Refresh market data only; Upsert never touches status.
			if _, err := s.opts.Tokens.Upsert(ctx, &token); err != nil {
				s.opts.Logger.Printf("refresh %s: %v", token.Address, err)
				continue
			}
			if s.opts.Metrics != nil {
				s.opts.Metrics.TokensRefreshed.Inc()
			}
			s.recordPrice(ctx, &token)
			continue
		}

		detailed, err := s.opts.Discovery.GetTokenDetails(ctx, s.opts.Chain, token.Address)
		if err != nil {
			s.opts.Logger.Printf("details for %s: %v", token.Address, err)
			continue
		}
		if detailed == nil {
			// Boosted entries without pools yet; keep the bare record
			// so the evaluator can still reject it on merit.
			detailed = &token
		}

		if _, err := s.opts.Tokens.Upsert(ctx, detailed); err != nil {
			s.opts.Logger.Printf("save %s: %v", detailed.Address, err)
			continue
		}
		newTokens = append(newTokens, *detailed)
		if s.opts.Metrics != nil {
			s.opts.Metrics.TokensDiscovered.Inc()
		}
		s.recordPrice(ctx, detailed)
		s.opts.Logger.Printf("new token detected: %s (%s)", detailed.Symbol, detailed.Address)
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.ScansTotal.Inc()
	}
	s.opts.Logger.Printf("scan completed in %s, %d new tokens", s.opts.Now().Sub(start), len(newTokens))
	return newTokens, nil
}

// recordPrice appends a price observation for the token.
func (s *Scanner) recordPrice(ctx context.Context, token *domain.Token) {
	if s.opts.Prices == nil || token.PriceUSD <= 0 {
		return
	}
	err := s.opts.Prices.Insert(ctx, &storage.PricePoint{
		TokenAddress: token.Address,
		ObservedAt:   s.opts.Now().UTC(),
		PriceUSD:     token.PriceUSD,
		LiquidityUSD: token.Liquidity,
		Volume24h:    token.Volume24h,
	})
	if err != nil {
		s.opts.Logger.Printf("record price for %s: %v", token.Address, err)
	}
}

// Run scans on the configured interval, with jitter, until ctx is done.
func (s *Scanner) Run(ctx context.Context) {
	s.opts.Logger.Printf("token scanner started, interval %s", s.opts.ScanInterval)

	for {
		if _, err := s.ScanOnce(ctx); err != nil {
			s.opts.Logger.Printf("scan: %v", err)
		}

		wait := s.opts.ScanInterval + s.opts.Jitter()
		select {
		case <-ctx.Done():
			s.opts.Logger.Printf("token scanner stopped")
			return
		case <-time.After(wait):
		}
	}
}
