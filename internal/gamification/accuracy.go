package gamification

import "github.com/shopspring/decimal"

// ComputeAccuracy returns correct/total as a percentage rounded to two decimals.
func ComputeAccuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total)))
	return pct.Round(2).InexactFloat64()
}

// Mean averages values rounded to places decimals, 0 for none.
func Mean(values []float64, places int32) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values)))).Round(places).InexactFloat64()
}
