package domain

import "time"

// TokenStatus is the lifecycle state of a discovered token.
// Transitions are one-directional: new → analyzed → bought → sold|rejected.
type TokenStatus string

const (
	TokenStatusNew      TokenStatus = "new"
	TokenStatusAnalyzed TokenStatus = "analyzed"
	TokenStatusBought   TokenStatus = "bought"
	TokenStatusSold     TokenStatus = "sold"
	TokenStatusRejected TokenStatus = "rejected"
)

// Valid reports whether s is a known token status.
func (s TokenStatus) Valid() bool {
	switch s {
	case TokenStatusNew, TokenStatusAnalyzed, TokenStatusBought, TokenStatusSold, TokenStatusRejected:
		return true
	}
	return false
}

// Token represents a token discovered by the scanner.
// Corresponds to the tokens table; address is the unique key.
type Token struct {
	Address             string                 `json:"address"`
	Name                string                 `json:"name"`
	Symbol              string                 `json:"symbol"`
	Network             string                 `json:"network"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	HasProfile          bool                   `json:"has_profile"`
	BoosterActive       bool                   `json:"booster_active"`
	Liquidity           float64                `json:"liquidity"`
	Volume24h           float64                `json:"volume_24h"`
	PriceUSD            float64                `json:"price_usd"`
	LiquidityPoolsCount int                    `json:"liquidity_pools_count"`
	Status              TokenStatus            `json:"status"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
}

// PriceChange24h extracts the 24h price change percentage from token metadata.
// Returns 0 and false when the field is absent or malformed.
func (t *Token) PriceChange24h() (float64, bool) {
	raw, ok := t.Metadata["price_change"]
	if !ok {
		return 0, false
	}
	changes, ok := raw.(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := changes["h24"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
