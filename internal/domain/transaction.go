package domain

import "time"

// TransactionType distinguishes buys from sells.
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "buy"
	TransactionTypeSell TransactionType = "sell"
)

// Transaction statuses.
const (
	TransactionCompleted = "completed"
)

// Sell reason codes recorded in transaction metadata.
const (
	SellReasonAutomaticX3 = "automatic_x3"
)

// Transaction is one executed swap, keyed by its unique signature.
// Rows are append-only and never mutated.
type Transaction struct {
	TokenAddress string                 `json:"token_address"`
	Type         TransactionType        `json:"type"`
	Amount       float64                `json:"amount"`    // base units of the input asset
	PriceUSD     float64                `json:"price_usd"` // token price at execution
	TotalUSD     float64                `json:"total_usd"` // USD value of the swap
	Timestamp    time.Time              `json:"timestamp"`
	TxSignature  string                 `json:"tx_signature"`
	Status       string                 `json:"status"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}
