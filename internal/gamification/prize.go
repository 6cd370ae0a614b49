package gamification

import "github.com/shopspring/decimal"

// DefaultPrizeTable is the share of the pool, in percent, for ranks 1 through 10.
var DefaultPrizeTable = []float64{40, 25, 15, 8, 5, 3, 2, 1, 0.5, 0.5}

// Prize returns round(pool × table[rank-1] / 100). Ranks outside the table earn 0.
// A nil or empty table falls back to DefaultPrizeTable.
func Prize(pool int64, rank int, table []float64) int64 {
	if len(table) == 0 {
		table = DefaultPrizeTable
	}
	if rank < 1 || rank > len(table) {
		return 0
	}
	share := decimal.NewFromInt(pool).
		Mul(decimal.NewFromFloat(table[rank-1])).
		Div(decimal.NewFromInt(100))
	return share.Round(0).IntPart()
}
