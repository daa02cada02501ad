package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/money"
)

// Allocate spreads pool across the discountable lines proportionally to their
// subtotal after item discounts. Every input line is present in the result;
// non-discountable lines map to zero. Shares are rounded to places and the
// rounding remainder goes to the last discountable line so the shares add up
// to the (rounded) pool exactly.
func Allocate(lines []LineItem, pool decimal.Decimal, places int32) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(lines))
	base := money.Zero
	last := -1
	for i, l := range lines {
		out[l.Key()] = money.Zero
		if l.Discountable {
			base = base.Add(l.SubtotalAfterItemDiscount)
			last = i
		}
	}
	pool = money.Round(pool, places)
	if last < 0 || !base.IsPositive() || !pool.IsPositive() {
		return out
	}

	remaining := pool
	for _, l := range lines {
		if !l.Discountable {
			continue
		}
		share := money.Round(pool.Mul(l.SubtotalAfterItemDiscount).Div(base), places)
		out[l.Key()] = share
		remaining = remaining.Sub(share)
	}
	lastKey := lines[last].Key()
	out[lastKey] = out[lastKey].Add(remaining)
	return out
}
