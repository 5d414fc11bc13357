// Package jupiter is a client for the Jupiter v6 aggregator API,
// used to quote and build swap transactions on Solana.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Well-known mints.
const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// DefaultBaseURL is the public Jupiter v6 quote API host.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

const defaultMaxRetries = 4

// ErrNoRoute is returned when Jupiter cannot route the swap.
var ErrNoRoute = errors.New("jupiter: no route for swap")

// Quote is a swap quote. Raw keeps the full API response so it can be
// passed back to the swap endpoint untouched.
type Quote struct {
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	PriceImpactPct       string `json:"priceImpactPct"`
	SwapMode             string `json:"swapMode"`

	Raw json.RawMessage `json:"-"`
}

// OutAmountInt parses the quoted output amount.
func (q *Quote) OutAmountInt() (uint64, error) {
	return strconv.ParseUint(q.OutAmount, 10, 64)
}

// Client talks to the Jupiter v6 API with retry on transient failures.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
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

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a Jupiter API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuote requests an ExactIn quote. A quote with a zero or missing
// output amount is rejected with ErrNoRoute.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("swapMode", "ExactIn")

	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	quote.Raw = body

	if quote.OutAmount == "" || quote.OutAmount == "0" {
		return nil, ErrNoRoute
	}
	return &quote, nil
}

// BuildSwap exchanges a quote for a base64-encoded swap transaction
// ready for signing and submission.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string) (string, error) {
	payload := map[string]interface{}{
		"quoteResponse": json.RawMessage(quote.Raw),
		"userPublicKey": userPublicKey,
		"wrapUnwrapSOL": true,
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.baseURL+"/swap", reqBody)
	if err != nil {
		return "", err
	}

	var result struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode swap response: %w", err)
	}
	if result.SwapTransaction == "" {
		return "", errors.New("jupiter: empty swap transaction")
	}
	return result.SwapTransaction, nil
}

// do performs an HTTP request with exponential-backoff retries.
func (c *Client) do(ctx context.Context, method, rawURL string, reqBody []byte) ([]byte, error) {
	var respBody []byte

	operation := func() error {
		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

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
			respBody = body
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("jupiter: http %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("jupiter: http %d: %s", resp.StatusCode, string(body)))
		}
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return respBody, nil
}
