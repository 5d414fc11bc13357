package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"log"
	"sync/atomic"

	"github.com/mr-tron/base58"

	"solana-trading-bot/internal/jupiter"
)

// Simulated balances in base units.
const (
	simSOLBalance     = 1_000_000_000 // 1 SOL
	simUSDCBalance    = 1_000_000     // 1 USDC, 6 decimals
	simGenericBalance = 1_000_000_000 // 1 token at 9 decimals
)

// Simulated is a ledger client that never touches the chain. Submits
// return unique fabricated signatures; balances are canned.
type Simulated struct {
	logger  *log.Logger
	counter atomic.Uint64
}

// NewSimulated creates a simulated ledger client.
func NewSimulated(logger *log.Logger) *Simulated {
	logger.Printf("SIMULATION MODE: no real transactions will be sent")
	return &Simulated{logger: logger}
}

// SubmitTransaction implements Client. The signature is derived from
// the transaction bytes and a counter, so repeated submits of the same
// payload still produce distinct signatures.
func (s *Simulated) SubmitTransaction(ctx context.Context, tx []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	n := s.counter.Add(1)
	h := sha256.New()
	h.Write(tx)
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], n)
	h.Write(seq[:])

	// Two digests make a 64-byte payload, the size of a real signature.
	first := h.Sum(nil)
	second := sha256.Sum256(first)
	signature := base58.Encode(append(first, second[:]...))

	s.logger.Printf("simulated transaction: %s", signature)
	return signature, nil
}

// TokenBalance implements Client with canned balances.
func (s *Simulated) TokenBalance(ctx context.Context, mint string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	switch mint {
	case jupiter.SOLMint:
		return simSOLBalance, nil
	case jupiter.USDCMint:
		return simUSDCBalance, nil
	default:
		return simGenericBalance, nil
	}
}

var _ Client = (*Simulated)(nil)
