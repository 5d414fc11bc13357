// Package dexscreener is a client for the public DexScreener API,
// used to discover and enrich Solana tokens.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"solana-trading-bot/internal/domain"
)

// DefaultBaseURL is the public DexScreener API host.
const DefaultBaseURL = "https://api.dexscreener.com"

// ChainSolana is the chain identifier used in DexScreener paths.
const ChainSolana = "solana"

const (
	defaultRateLimit  = 60 // requests per minute
	defaultMaxRetries = 4
)

// Client talks to the DexScreener API with retry and rate limiting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)

	// sliding one-minute window of request times
	mu        sync.Mutex
	rateLimit int
	requests  []time.Time
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit sets the requests-per-minute budget.
func WithRateLimit(n int) Option {
	return func(c *Client) { c.rateLimit = n }
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a DexScreener API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: defaultMaxRetries,
		rateLimit:  defaultRateLimit,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// waitRateLimit blocks until a request slot is available in the
// one-minute sliding window.
func (c *Client) waitRateLimit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-time.Minute)
	kept := c.requests[:0]
	for _, t := range c.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.requests = kept

	if len(c.requests) >= c.rateLimit {
		oldest := c.requests[0]
		if wait := time.Minute - now.Sub(oldest); wait > 0 {
			c.sleep(wait)
		}
	}

	c.requests = append(c.requests, c.now())
}

// getJSON fetches a URL and decodes the JSON body into out, retrying
// transient failures with exponential backoff.
func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	operation := func() error {
		c.waitRateLimit()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("dexscreener: not found: %s", rawURL))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("dexscreener: http %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("dexscreener: http %d: %s", resp.StatusCode, string(body)))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	return backoff.Retry(operation, bo)
}

// SearchPairs searches pairs matching the query.
func (c *Client) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	u := c.baseURL + "/latest/dex/search?q=" + url.QueryEscape(query)
	var result searchResult
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	return result.Pairs, nil
}

// GetTokenPairs returns the pools of a token address.
func (c *Client) GetTokenPairs(ctx context.Context, chainID, tokenAddress string) ([]Pair, error) {
	u := fmt.Sprintf("%s/token-pairs/v1/%s/%s",
		c.baseURL, url.PathEscape(chainID), url.PathEscape(tokenAddress))
	var pairs []Pair
	if err := c.getJSON(ctx, u, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// GetBoostedTokens returns the latest boosted tokens across chains.
func (c *Client) GetBoostedTokens(ctx context.Context) ([]BoostedToken, error) {
	u := c.baseURL + "/token-boosts/latest/v1"
	var tokens []BoostedToken
	if err := c.getJSON(ctx, u, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// GetTokenOrders returns paid orders attached to a token.
func (c *Client) GetTokenOrders(ctx context.Context, chainID, tokenAddress string) ([]Order, error) {
	u := fmt.Sprintf("%s/orders/v1/%s/%s",
		c.baseURL, url.PathEscape(chainID), url.PathEscape(tokenAddress))
	var orders []Order
	if err := c.getJSON(ctx, u, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetRecentTokens discovers tokens on the chain created within maxAge.
// Boosted tokens are checked first; when none match, pair search is the
// authoritative fallback, filtered by pair creation time.
func (c *Client) GetRecentTokens(ctx context.Context, chainID string, maxAge time.Duration) ([]domain.Token, error) {
	var tokens []domain.Token
	seen := make(map[string]bool)

	boosted, err := c.GetBoostedTokens(ctx)
	if err == nil {
		for _, b := range boosted {
			if b.ChainID != chainID || b.TokenAddress == "" || seen[b.TokenAddress] {
				continue
			}
			seen[b.TokenAddress] = true
			tokens = append(tokens, domain.Token{
				Address:       b.TokenAddress,
				Name:          "Unknown",
				Symbol:        "Unknown",
				Network:       chainID,
				HasProfile:    true,
				BoosterActive: true,
				CreatedAt:     c.now().UTC(),
				Status:        domain.TokenStatusNew,
				Metadata: map[string]interface{}{
					"icon":        b.Icon,
					"header":      b.Header,
					"description": b.Description,
					"links":       b.Links,
					"amount":      b.Amount,
					"totalAmount": b.TotalAmount,
				},
			})
		}
	}

	if len(tokens) > 0 {
		return tokens, nil
	}

	pairs, err := c.SearchPairs(ctx, chainID)
	if err != nil {
		return nil, err
	}

	minCreated := c.now().Add(-maxAge)
	for _, pair := range pairs {
		if pair.ChainID != chainID || pair.PairCreatedAt == 0 {
			continue
		}
		createdAt := time.UnixMilli(pair.PairCreatedAt)
		if createdAt.Before(minCreated) {
			continue
		}
		if pair.BaseToken.Address == "" || seen[pair.BaseToken.Address] {
			continue
		}
		seen[pair.BaseToken.Address] = true
		tokens = append(tokens, tokenFromPair(pair, chainID, 0))
	}

	return tokens, nil
}

// GetTokenDetails fetches the full picture of a token from its pools.
// Returns nil when the token has no pools.
func (c *Client) GetTokenDetails(ctx context.Context, chainID, tokenAddress string) (*domain.Token, error) {
	pairs, err := c.GetTokenPairs(ctx, chainID, tokenAddress)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	pair := pairs[0]
	if pair.BaseToken.Address == "" {
		return nil, nil
	}

	token := tokenFromPair(pair, chainID, len(pairs))

	pools := make([]interface{}, 0, len(pairs))
	for _, p := range pairs {
		var liq float64
		if p.Liquidity != nil {
			liq = p.Liquidity.Usd
		}
		pools = append(pools, map[string]interface{}{
			"pair_address":  p.PairAddress,
			"dex_id":        p.DexID,
			"url":           p.URL,
			"liquidity_usd": liq,
		})
	}
	token.Metadata["pairs"] = pools

	// Booster status from paid orders, with a market-activity fallback
	// when the orders endpoint is unavailable.
	orders, err := c.GetTokenOrders(ctx, chainID, tokenAddress)
	if err == nil {
		token.BoosterActive = len(orders) > 0
	} else {
		token.BoosterActive = token.Liquidity > 5000 && token.Volume24h > 5000
	}

	return &token, nil
}

// tokenFromPair maps a DexScreener pair onto the base token.
func tokenFromPair(pair Pair, chainID string, poolCount int) domain.Token {
	priceUSD, _ := strconv.ParseFloat(pair.PriceUsd, 64)

	var liquidity float64
	if pair.Liquidity != nil {
		liquidity = pair.Liquidity.Usd
	}

	createdAt := time.Now().UTC()
	if pair.PairCreatedAt > 0 {
		createdAt = time.UnixMilli(pair.PairCreatedAt).UTC()
	}

	return domain.Token{
		Address:             pair.BaseToken.Address,
		Name:                nameOr(pair.BaseToken.Name, "Unknown"),
		Symbol:              nameOr(pair.BaseToken.Symbol, "????"),
		Network:             chainID,
		CreatedAt:           createdAt,
		HasProfile:          pair.BaseToken.Name != "",
		Liquidity:           liquidity,
		Volume24h:           pair.Volume.H24,
		PriceUSD:            priceUSD,
		LiquidityPoolsCount: poolCount,
		Status:              domain.TokenStatusNew,
		Metadata: map[string]interface{}{
			"pair_address": pair.PairAddress,
			"dex_id":       pair.DexID,
			"url":          pair.URL,
			"fdv":          pair.Fdv,
			"price_change": map[string]interface{}{
				"m5":  pair.PriceChange.M5,
				"h1":  pair.PriceChange.H1,
				"h6":  pair.PriceChange.H6,
				"h24": pair.PriceChange.H24,
			},
		},
	}
}

func nameOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
