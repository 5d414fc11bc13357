package domain

import "time"

// TokenAnalysis is the result of one evaluator pass over a token.
// Immutable once created; the latest row by AnalysisTimestamp is authoritative.
type TokenAnalysis struct {
	TokenAddress      string    `json:"token_address"`
	AnalysisTimestamp time.Time `json:"analysis_timestamp"`
	InvestmentScore   float64   `json:"investment_score"` // 0..100
	InvestmentAmount  float64   `json:"investment_amount"` // USD
	BuyRecommendation bool      `json:"buy_recommendation"`
	Reasons           []string  `json:"reasons"` // ordered: profile, booster, liquidity, volume, pools, verdict
}
