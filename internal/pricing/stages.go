package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/money"
)

// Stage is one transformation of the calculation pipeline.
type Stage func(Context) Context

// Stages returns the pipeline in execution order. The order is fixed; a
// missing discount kind is represented by zero values, never by skipping.
func Stages() []Stage {
	return []Stage{
		ApplyItemDiscounts,
		ApplySubtotalDiscounts,
		AllocateSubtotalDiscounts,
		ApplyTax,
		ApplyTotalDiscounts,
	}
}

// Run folds ctx through every stage.
func Run(ctx Context) Context {
	for _, stage := range Stages() {
		ctx = stage(ctx)
	}
	return ctx
}

// ApplyItemDiscounts computes the per-unit discount intrinsic to each line
// (rate + fixed amount) plus any item-level coupons, and the line subtotal
// after those discounts.
func ApplyItemDiscounts(ctx Context) Context {
	limits := make([]*decimal.Decimal, len(ctx.Coupons))
	for i, c := range ctx.Coupons {
		if c.Level == LevelItem && c.Limit != nil {
			remaining := money.ClampZero(*c.Limit)
			limits[i] = &remaining
		}
	}

	total := money.Zero
	for i := range ctx.Items {
		it := &ctx.Items[i]
		perUnit := money.ClampZero(money.Percent(it.Price, it.DiscountRate).Add(it.DiscountAmount))
		if it.Discountable && it.Qty.IsPositive() {
			for ci, c := range ctx.Coupons {
				if c.Level != LevelItem {
					continue
				}
				room := money.ClampZero(it.Price.Sub(perUnit))
				extra := c.Value
				if c.Type == DiscountPercentage {
					extra = money.Percent(it.Price, c.Value)
				}
				extra = money.Min(money.ClampZero(extra), room)
				lineExtra := extra.Mul(it.Qty)
				if limits[ci] != nil {
					lineExtra = money.Min(lineExtra, *limits[ci])
					left := limits[ci].Sub(lineExtra)
					limits[ci] = &left
					extra = lineExtra.Div(it.Qty)
				}
				perUnit = perUnit.Add(extra)
				entry := &ctx.CouponBreakdown[ci]
				entry.Amount = entry.Amount.Add(lineExtra)
				entry.Allocated = entry.Amount
			}
		}
		it.ItemDiscountPerUnit = perUnit
		it.SubtotalAfterItemDiscount = money.ClampZero(it.Price.Sub(perUnit).Mul(it.Qty))
		total = total.Add(it.SubtotalAfterItemDiscount)
	}
	ctx.SubtotalAfterItemDiscounts = total
	return ctx
}

// ApplySubtotalDiscounts computes the subtotal-level pool from the
// discountable lines only. Percentage coupons are taken first, flat coupons
// consume what is left; the pool never exceeds the discountable base.
func ApplySubtotalDiscounts(ctx Context) Context {
	discountable := money.Zero
	for _, it := range ctx.Items {
		if it.Discountable {
			discountable = discountable.Add(it.SubtotalAfterItemDiscount)
		}
	}
	remaining := discountable

	percentAmount := money.Zero
	for i, c := range ctx.Coupons {
		if c.Level != LevelSubtotal || c.Type != DiscountPercentage {
			continue
		}
		amount := capAmount(money.Percent(discountable, c.Value), c.Limit, remaining)
		ctx.CouponBreakdown[i].Amount = amount
		percentAmount = percentAmount.Add(amount)
		remaining = remaining.Sub(amount)
	}
	afterPercent := remaining

	fixedAmount := money.Zero
	for i, c := range ctx.Coupons {
		if c.Level != LevelSubtotal || c.Type == DiscountPercentage {
			continue
		}
		amount := capAmount(c.Value, c.Limit, remaining)
		ctx.CouponBreakdown[i].Amount = amount
		fixedAmount = fixedAmount.Add(amount)
		remaining = remaining.Sub(amount)
	}

	pool := money.Min(money.Round(percentAmount.Add(fixedAmount), ctx.Decimals), discountable)
	ctx.SubtotalLevelDiscount = money.ClampZero(pool)
	ctx.SubtotalAfterSubtotalDiscounts = ctx.SubtotalAfterItemDiscounts.Sub(ctx.SubtotalLevelDiscount)
	ctx.SubtotalMeta = SubtotalMeta{
		DiscountableSubtotal:    discountable,
		NonDiscountableSubtotal: ctx.SubtotalAfterItemDiscounts.Sub(discountable),
		PercentageRate:          ctx.PercentSubtotalDiscount,
		PercentageDiscount:      percentAmount,
		FixedRequested:          ctx.FixedSubtotalDiscount,
		FixedDiscount:           fixedAmount,
		RemainingAfterPercent:   money.ClampZero(afterPercent),
		FinalDiscountable:       money.ClampZero(remaining),
	}
	return ctx
}

// AllocateSubtotalDiscounts distributes the subtotal pool over the
// discountable lines and records the allocation on the breakdown.
func AllocateSubtotalDiscounts(ctx Context) Context {
	var primary string
	if codes := ctx.codes(LevelSubtotal); len(codes) > 0 {
		primary = codes[0]
	}

	if !ctx.SubtotalLevelDiscount.IsPositive() {
		for i := range ctx.Items {
			ctx.Items[i].ProportionalWeight = money.Zero
			ctx.Items[i].AppliedSubtotalDiscount = money.Zero
			ctx.Items[i].AppliedCouponCode = ""
		}
		ctx.SubtotalAfterSubtotalDiscounts = ctx.SubtotalAfterItemDiscounts
		return ctx
	}

	shares := Allocate(ctx.Items, ctx.SubtotalLevelDiscount, ctx.Decimals)
	for i := range ctx.Items {
		it := &ctx.Items[i]
		it.ProportionalWeight = money.Zero
		if ctx.SubtotalAfterItemDiscounts.IsPositive() {
			it.ProportionalWeight = it.SubtotalAfterItemDiscount.Div(ctx.SubtotalAfterItemDiscounts)
		}
		it.AppliedSubtotalDiscount = shares[it.Key()]
		it.AppliedCouponCode = ""
		if it.AppliedSubtotalDiscount.IsPositive() {
			it.AppliedCouponCode = primary
		}
	}
	ctx.SubtotalAfterSubtotalDiscounts = ctx.SubtotalAfterItemDiscounts.Sub(ctx.SubtotalLevelDiscount)
	for i := range ctx.CouponBreakdown {
		if ctx.CouponBreakdown[i].Level == LevelSubtotal {
			ctx.CouponBreakdown[i].Allocated = ctx.CouponBreakdown[i].Amount
		}
	}
	return ctx
}

// ApplyTax settles each line after subtotal discounts, computes tax on the
// post-discount price and the gross total the total-level coupons apply to.
func ApplyTax(ctx Context) Context {
	tax := money.Zero
	for i := range ctx.Items {
		it := &ctx.Items[i]
		it.FinalSubtotal = money.ClampZero(it.SubtotalAfterItemDiscount.Sub(it.AppliedSubtotalDiscount))
		it.TaxTotal = money.ClampZero(money.Percent(it.FinalSubtotal, it.TaxRate))
		it.Tax = perUnit(it.TaxTotal, it.Qty)
		it.Total = it.FinalSubtotal.Add(it.TaxTotal)
		tax = tax.Add(it.TaxTotal)
	}
	ctx.NetSubtotal = money.ClampZero(ctx.SubtotalAfterItemDiscounts.Sub(ctx.SubtotalLevelDiscount))
	ctx.TaxAmount = tax
	ctx.GrossTotalBeforeTotalDiscount = money.Sum(ctx.NetSubtotal, ctx.TaxAmount, ctx.Shipping)
	return ctx
}

// ApplyTotalDiscounts applies total-level coupons once against the gross
// total. The discount never exceeds the base.
func ApplyTotalDiscounts(ctx Context) Context {
	base := ctx.GrossTotalBeforeTotalDiscount
	remaining := base
	discount := money.Zero
	for i, c := range ctx.Coupons {
		if c.Level != LevelTotal {
			continue
		}
		requested := c.Value
		if c.Type == DiscountPercentage {
			requested = money.Percent(base, c.Value)
		}
		amount := capAmount(requested, c.Limit, remaining)
		ctx.CouponBreakdown[i].Amount = amount
		discount = discount.Add(amount)
		remaining = remaining.Sub(amount)
	}
	ctx.TotalLevelDiscount = money.ClampZero(money.Min(discount, base))
	ctx.TotalAfterDiscounts = money.ClampZero(base.Sub(ctx.TotalLevelDiscount))
	ctx.TotalMeta = TotalMeta{
		Codes:   ctx.codes(LevelTotal),
		Percent: ctx.PercentTotalDiscount,
		Fixed:   ctx.FixedTotalDiscount,
		Total:   ctx.TotalLevelDiscount,
	}
	return ctx
}

func capAmount(amount decimal.Decimal, limit *decimal.Decimal, remaining decimal.Decimal) decimal.Decimal {
	amount = money.ClampZero(amount)
	if limit != nil {
		amount = money.Min(amount, money.ClampZero(*limit))
	}
	return money.ClampZero(money.Min(amount, remaining))
}
