// Package evaluator scores tokens and sizes investments. Evaluation is
// pure: the same token always yields the same analysis.
package evaluator

import (
	"fmt"
	"time"

	"solana-trading-bot/internal/domain"
)

// RecommendThreshold is the minimum score for a buy recommendation.
const RecommendThreshold = 50.0

// Scoring weights. They sum to 100.
const (
	weightProfile     = 15.0
	weightBooster     = 15.0
	weightLiquidity   = 20.0
	weightVolume      = 20.0
	weightPools       = 15.0
	weightPriceChange = 15.0
)

// Market thresholds in USD.
const (
	marketLow  = 1_000.0
	marketHigh = 10_000.0
)

// Evaluator turns token market data into an investment analysis.
type Evaluator struct{}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate analyzes a token. The returned analysis carries the score,
// the sized amount, the recommendation, and human-readable reasons.
func (e *Evaluator) Evaluate(token domain.Token) domain.TokenAnalysis {
	amount := investmentAmount(token)
	score := investmentScore(token)

	return domain.TokenAnalysis{
		TokenAddress:      token.Address,
		AnalysisTimestamp: time.Now().UTC(),
		InvestmentScore:   score,
		InvestmentAmount:  amount,
		BuyRecommendation: amount > 0 && score >= RecommendThreshold,
		Reasons:           reasons(token, amount, score),
	}
}

// investmentAmount sizes the buy in USD by a ladder of criteria.
func investmentAmount(token domain.Token) float64 {
	amount := 1.0

	if token.HasProfile {
		amount = 3.0
	}
	if token.HasProfile && token.BoosterActive {
		amount = 5.0
	}

	if token.HasProfile && token.BoosterActive &&
		token.Volume24h >= marketHigh && token.Liquidity >= marketHigh {
		switch {
		case token.LiquidityPoolsCount > 2:
			amount = 20.0
		case token.LiquidityPoolsCount == 2:
			amount = 15.0
		default:
			amount = 10.0
		}
	}

	return amount
}

// investmentScore rates the token from 0 to 100.
func investmentScore(token domain.Token) float64 {
	score := 0.0

	if token.HasProfile {
		score += weightProfile
	}
	if token.BoosterActive {
		score += weightBooster
	}

	switch {
	case token.Liquidity >= marketHigh:
		score += weightLiquidity
	case token.Liquidity >= marketLow:
		score += weightLiquidity * 0.5
	}

	switch {
	case token.Volume24h >= marketHigh:
		score += weightVolume
	case token.Volume24h >= marketLow:
		score += weightVolume * 0.5
	}

	switch {
	case token.LiquidityPoolsCount >= 3:
		score += weightPools
	case token.LiquidityPoolsCount == 2:
		score += weightPools * (2.0 / 3.0)
	case token.LiquidityPoolsCount == 1:
		score += weightPools * (1.0 / 3.0)
	}

	// A moderate uptrend scores best. Steep pumps look like exit
	// liquidity in the making.
	if change, ok := token.PriceChange24h(); ok {
		switch {
		case change >= 5 && change <= 20:
			score += weightPriceChange
		case change > 0 && change < 5:
			score += weightPriceChange * 0.7
		case change > 20 && change <= 50:
			score += weightPriceChange * 0.5
		case change > 50:
			score += weightPriceChange * 0.3
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// reasons explains the decision, one line per criterion, verdict last.
func reasons(token domain.Token, amount, score float64) []string {
	var out []string

	if token.HasProfile {
		out = append(out, "token has a verified profile (+)")
	} else {
		out = append(out, "token has no verified profile (-)")
	}

	if token.BoosterActive {
		out = append(out, "token has an active booster (+)")
	} else {
		out = append(out, "token has no active booster (-)")
	}

	switch {
	case token.Liquidity >= marketHigh:
		out = append(out, fmt.Sprintf("high liquidity: $%.2f (+)", token.Liquidity))
	case token.Liquidity >= marketLow:
		out = append(out, fmt.Sprintf("moderate liquidity: $%.2f (~)", token.Liquidity))
	default:
		out = append(out, fmt.Sprintf("low liquidity: $%.2f (-)", token.Liquidity))
	}

	switch {
	case token.Volume24h >= marketHigh:
		out = append(out, fmt.Sprintf("high 24h volume: $%.2f (+)", token.Volume24h))
	case token.Volume24h >= marketLow:
		out = append(out, fmt.Sprintf("moderate 24h volume: $%.2f (~)", token.Volume24h))
	default:
		out = append(out, fmt.Sprintf("low 24h volume: $%.2f (-)", token.Volume24h))
	}

	switch {
	case token.LiquidityPoolsCount >= 3:
		out = append(out, fmt.Sprintf("multiple liquidity pools: %d (+)", token.LiquidityPoolsCount))
	case token.LiquidityPoolsCount == 2:
		out = append(out, "two liquidity pools (~)")
	case token.LiquidityPoolsCount == 1:
		out = append(out, "only one liquidity pool (-)")
	default:
		out = append(out, "no liquidity pools found (-)")
	}

	if amount > 0 && score >= RecommendThreshold {
		out = append(out, fmt.Sprintf("recommendation: BUY $%.2f, score %.1f/100", amount, score))
	} else {
		out = append(out, fmt.Sprintf("recommendation: DO NOT BUY, score %.1f/100", score))
	}

	return out
}
