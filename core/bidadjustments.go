package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ApplyValueAdjustmentFactors scales each bid's value by its bidder's adjustment factor.
// Bidder lookup is case-insensitive on both sides; missing or non-positive factors
// leave the value unchanged. Adjusted values are rounded to monetary precision.
// The input slice is not modified.
func ApplyValueAdjustmentFactors(bids []Bid, adjustmentFactors map[string]float64) []Bid {
	folded := foldFactors(adjustmentFactors)
	result := make([]Bid, len(bids))

	for i, bid := range bids {
		result[i] = bid
		result[i].Value = applyFactor(bid.Value, folded[strings.ToLower(bid.Bidder)])
	}

	return result
}

// ApplySingleValueAdjustmentFactor adjusts one value for bidderName.
func ApplySingleValueAdjustmentFactor(value float64, bidderName string, adjustmentFactors map[string]float64) float64 {
	for bidder, factor := range adjustmentFactors {
		if strings.EqualFold(bidder, bidderName) {
			return applyFactor(value, factor)
		}
	}
	return value
}

// foldFactors keys the factors by lowercased bidder.
func foldFactors(adjustmentFactors map[string]float64) map[string]float64 {
	folded := make(map[string]float64, len(adjustmentFactors))
	for bidder, factor := range adjustmentFactors {
		folded[strings.ToLower(bidder)] = factor
	}
	return folded
}

func applyFactor(value float64, factor float64) float64 {
	if factor <= 0 || factor == 1.0 {
		return value
	}

	// Use decimal arithmetic for precise calculation
	valueDecimal := decimal.NewFromFloat(value)
	adjustmentFactorDecimal := decimal.NewFromFloat(factor)

	result, _ := valueDecimal.Mul(adjustmentFactorDecimal).Round(monetaryPrecision).Float64()
	return result
}
