// Package ledger submits transactions to the Solana ledger and reads
// wallet balances. A simulated implementation stands in for the chain
// when the service runs without real funds.
package ledger

import (
	"context"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Client abstracts ledger access for trading.
type Client interface {
	// SubmitTransaction submits a signed transaction and returns its
	// signature once it is accepted.
	SubmitTransaction(ctx context.Context, tx []byte) (string, error)

	// TokenBalance returns the wallet's balance of the mint in base
	// units (lamports for SOL, raw token units otherwise).
	TokenBalance(ctx context.Context, mint string) (uint64, error)
}

// ValidatePubkey checks that s is a base58-encoded ed25519 public key
// lying on the curve.
func ValidatePubkey(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid base58 pubkey: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("pubkey must be 32 bytes, got %d", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("pubkey not on curve: %w", err)
	}
	return nil
}
