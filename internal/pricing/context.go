package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/money"
)

// CouponInput is an applied coupon as seen by the pipeline.
type CouponInput struct {
	Code  string
	Type  DiscountType
	Value decimal.Decimal
	Level Level
	// Limit caps the absolute discount this coupon may produce. Nil means uncapped.
	Limit *decimal.Decimal
}

// BreakdownEntry records what one coupon contributed during a pass.
type BreakdownEntry struct {
	Code      string          `json:"code"`
	Type      DiscountType    `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Level     Level           `json:"level"`
	Amount    decimal.Decimal `json:"amount"`
	Allocated decimal.Decimal `json:"allocated"`
}

// SubtotalMeta describes how the subtotal pool was built.
type SubtotalMeta struct {
	DiscountableSubtotal    decimal.Decimal
	NonDiscountableSubtotal decimal.Decimal
	PercentageRate          decimal.Decimal
	PercentageDiscount      decimal.Decimal
	FixedRequested          decimal.Decimal
	FixedDiscount           decimal.Decimal
	RemainingAfterPercent   decimal.Decimal
	FinalDiscountable       decimal.Decimal
}

// TotalMeta describes the total-level discount.
type TotalMeta struct {
	Codes   []string
	Percent decimal.Decimal
	Fixed   decimal.Decimal
	Total   decimal.Decimal
}

// Context is the scratch aggregate threaded through one calculation pass.
// It owns its Items; stages receive it by value and hand it to the next one.
type Context struct {
	Items    []LineItem
	Coupons  []CouponInput
	Shipping decimal.Decimal
	Decimals int32

	PercentSubtotalDiscount decimal.Decimal
	FixedSubtotalDiscount   decimal.Decimal
	PercentTotalDiscount    decimal.Decimal
	FixedTotalDiscount      decimal.Decimal

	SubtotalAfterItemDiscounts     decimal.Decimal
	SubtotalLevelDiscount          decimal.Decimal
	SubtotalAfterSubtotalDiscounts decimal.Decimal
	NetSubtotal                    decimal.Decimal
	TaxAmount                      decimal.Decimal
	GrossTotalBeforeTotalDiscount  decimal.Decimal
	TotalLevelDiscount             decimal.Decimal
	TotalAfterDiscounts            decimal.Decimal

	SubtotalMeta SubtotalMeta
	TotalMeta    TotalMeta

	// CouponBreakdown is index-aligned with Coupons.
	CouponBreakdown []BreakdownEntry
}

// NewContext builds a fresh context for one pass. The lines are copied so the
// caller's slice is never written to.
func NewContext(items []LineItem, coupons []CouponInput, shipping decimal.Decimal) Context {
	ctx := Context{
		Items:    make([]LineItem, len(items)),
		Coupons:  make([]CouponInput, 0, len(coupons)),
		Shipping: money.ClampZero(shipping),
		Decimals: money.DefaultDecimals,
	}
	copy(ctx.Items, items)
	for i := range ctx.Items {
		ctx.Items[i].Reset()
	}
	for _, c := range coupons {
		if !c.Level.Valid() {
			c.Level = LevelSubtotal
		}
		value := money.ClampZero(c.Value)
		c.Value = value
		ctx.Coupons = append(ctx.Coupons, c)
		ctx.CouponBreakdown = append(ctx.CouponBreakdown, BreakdownEntry{
			Code:  c.Code,
			Type:  c.Type,
			Value: value,
			Level: c.Level,
		})
		switch c.Level {
		case LevelSubtotal:
			if c.Type == DiscountPercentage {
				ctx.PercentSubtotalDiscount = ctx.PercentSubtotalDiscount.Add(value)
			} else {
				ctx.FixedSubtotalDiscount = ctx.FixedSubtotalDiscount.Add(value)
			}
		case LevelTotal:
			if c.Type == DiscountPercentage {
				ctx.PercentTotalDiscount = ctx.PercentTotalDiscount.Add(value)
			} else {
				ctx.FixedTotalDiscount = ctx.FixedTotalDiscount.Add(value)
			}
		}
	}
	return ctx
}

// codes returns the coupon codes applied at the given level, in order.
func (c Context) codes(level Level) []string {
	var out []string
	for _, in := range c.Coupons {
		if in.Level == level {
			out = append(out, in.Code)
		}
	}
	return out
}

// Metric names a cart-level figure.
type Metric int

const (
	MetricInitialSubtotal Metric = iota
	MetricSubtotalAfterItemDiscounts
	MetricSubtotalLevelDiscount
	MetricFinalSubtotal
	MetricTax
	MetricShipping
	MetricGrossTotalBeforeTotalDiscount
	MetricTotalLevelDiscount
	MetricDiscount
	MetricFinalPayable
	MetricWeight
)

// Compute returns the unrounded value of a cart-level metric.
func (c Context) Compute(m Metric) decimal.Decimal {
	switch m {
	case MetricInitialSubtotal:
		total := money.Zero
		for _, it := range c.Items {
			total = total.Add(it.InitialSubtotal())
		}
		return total
	case MetricSubtotalAfterItemDiscounts:
		return c.SubtotalAfterItemDiscounts
	case MetricSubtotalLevelDiscount:
		return c.SubtotalLevelDiscount
	case MetricFinalSubtotal:
		return c.NetSubtotal
	case MetricTax:
		return c.TaxAmount
	case MetricShipping:
		return c.Shipping
	case MetricGrossTotalBeforeTotalDiscount:
		return c.GrossTotalBeforeTotalDiscount
	case MetricTotalLevelDiscount:
		return c.TotalLevelDiscount
	case MetricDiscount:
		itemLevel := c.Compute(MetricInitialSubtotal).Sub(c.SubtotalAfterItemDiscounts)
		return money.Sum(itemLevel, c.SubtotalLevelDiscount, c.TotalLevelDiscount)
	case MetricFinalPayable:
		return c.TotalAfterDiscounts
	case MetricWeight:
		total := money.Zero
		for _, it := range c.Items {
			total = total.Add(it.Compute(LineWeightTotal))
		}
		return total
	}
	return money.Zero
}

// Strategy computes cart-level metrics. Callers can plug their own to
// override how published figures are derived.
type Strategy interface {
	Compute(m Metric, c Context) decimal.Decimal
}

// DefaultStrategy defers to Context.Compute.
type DefaultStrategy struct{}

// Compute implements Strategy.
func (DefaultStrategy) Compute(m Metric, c Context) decimal.Decimal {
	return c.Compute(m)
}
