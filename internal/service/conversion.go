package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// Convert applies rate to amount in the given direction, rounded to 3 decimal places.
// BaseToQuote multiplies by the rate, QuoteToBase divides by it. A zero rate yields 0.
// A result that overflows float64 is returned unrounded as ±Inf.
func Convert(amount, rate float64, dir Direction) float64 {
	if rate == 0 {
		return 0
	}

	v := amount * rate
	if dir == QuoteToBase {
		v = amount / rate
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}
