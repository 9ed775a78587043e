package shared

import "github.com/shopspring/decimal"

// MoneyPlaces is the precision of every stored amount.
const MoneyPlaces = 2

// CostPlaces is the precision of unit costs.
const CostPlaces = 4

// RoundMoney rounds half away from zero to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundCost rounds a unit cost.
func RoundCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(CostPlaces)
}

// Sum adds values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Percent returns base × pct / 100 rounded to cents.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(pct).Div(decimal.NewFromInt(100)))
}

// MinDecimal returns the smaller value.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
