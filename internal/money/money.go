// Package money holds the decimal helpers shared by every pricing stage.
package money

import "github.com/shopspring/decimal"

// DefaultDecimals is the precision used for published figures when none is configured.
const DefaultDecimals = 2

var (
	// Zero is the additive identity.
	Zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
	half    = decimal.New(5, -1)
)

// Round rounds d half-up (towards positive infinity on an exact half) to the given number of places.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	if places < 0 {
		places = 0
	}
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

// ClampZero returns d or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// Percent returns base * pct / 100.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Format renders d rounded half-up with a fixed number of decimals.
func Format(d decimal.Decimal, places int32) string {
	if places < 0 {
		places = 0
	}
	return Round(d, places).StringFixed(places)
}

// FromFloat converts a float input (config, CLI) into a decimal.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Sum adds every value.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
