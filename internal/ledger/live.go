package ledger

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"

	"solana-trading-bot/internal/jupiter"
	"solana-trading-bot/internal/rpcpool"
	"solana-trading-bot/internal/solana"
)

// clientFactory builds an RPC client for an endpoint. Swappable in tests.
type clientFactory func(endpoint string) *solana.HTTPClient

// Live talks to real Solana nodes through the endpoint selector.
type Live struct {
	selector  *rpcpool.Selector
	confirmer *solana.Confirmer // nil disables confirmation
	wallet    string
	logger    *log.Logger

	newClient clientFactory
}

// NewLive creates a ledger client for the given wallet. The wallet
// public key is validated up front; a typo here would burn real funds.
func NewLive(selector *rpcpool.Selector, confirmer *solana.Confirmer, wallet string, logger *log.Logger, opts ...solana.ClientOption) (*Live, error) {
	if err := ValidatePubkey(wallet); err != nil {
		return nil, fmt.Errorf("wallet pubkey: %w", err)
	}
	return &Live{
		selector:  selector,
		confirmer: confirmer,
		wallet:    wallet,
		logger:    logger,
		newClient: func(endpoint string) *solana.HTTPClient {
			return solana.NewHTTPClient(endpoint, opts...)
		},
	}, nil
}

// Wallet returns the wallet public key.
func (l *Live) Wallet() string {
	return l.wallet
}

// client resolves the current best endpoint into an RPC client.
func (l *Live) client(ctx context.Context) (*solana.HTTPClient, error) {
	sel, err := l.selector.Select(ctx)
	if err != nil {
		return nil, fmt.Errorf("select endpoint: %w", err)
	}
	if !sel.Healthy {
		l.logger.Printf("no healthy RPC endpoint, trying %s anyway", sel.Endpoint)
	}
	return l.newClient(sel.Endpoint), nil
}

// SubmitTransaction implements Client. When a confirmer is configured
// the call blocks until the transaction is confirmed on-chain.
func (l *Live) SubmitTransaction(ctx context.Context, tx []byte) (string, error) {
	client, err := l.client(ctx)
	if err != nil {
		return "", err
	}

	encoded := base64.StdEncoding.EncodeToString(tx)
	signature, err := client.SendTransaction(ctx, encoded)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	l.logger.Printf("transaction submitted: %s", signature)

	if l.confirmer != nil {
		if err := l.confirmer.Confirm(ctx, signature); err != nil {
			return signature, fmt.Errorf("confirm %s: %w", signature, err)
		}
		l.logger.Printf("transaction confirmed: %s", signature)
	}
	return signature, nil
}

// TokenBalance implements Client. Native SOL is read via getBalance,
// SPL tokens via the wallet's token accounts for the mint.
func (l *Live) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	client, err := l.client(ctx)
	if err != nil {
		return 0, err
	}

	if mint == jupiter.SOLMint {
		return client.GetBalance(ctx, l.wallet)
	}

	accounts, err := client.GetTokenAccountsByOwner(ctx, l.wallet, mint)
	if err != nil {
		return 0, fmt.Errorf("token accounts for %s: %w", mint, err)
	}

	var total uint64
	for _, acc := range accounts {
		amount, err := strconv.ParseUint(acc.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse amount %q: %w", acc.Amount, err)
		}
		total += amount
	}
	return total, nil
}

var _ Client = (*Live)(nil)
