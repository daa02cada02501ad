package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/money"
)

// Calculator runs the pipeline and renders the published figures.
type Calculator struct {
	// Decimals is the precision of published figures and allocation shares.
	// Nil means money.DefaultDecimals; zero publishes whole units.
	Decimals *int32
	Strategy Strategy
}

// Places returns a Decimals value for n.
func Places(n int32) *int32 { return &n }

// Result carries the full context of a pass and its published totals.
type Result struct {
	Context Context
	Totals  Totals
}

// PublishedCoupon is a coupon breakdown entry rendered for display.
type PublishedCoupon struct {
	Code      string       `json:"code"`
	Type      DiscountType `json:"type"`
	Value     string       `json:"value"`
	Level     Level        `json:"level"`
	Amount    string       `json:"amount"`
	Allocated string       `json:"allocated"`
}

// DiscountPart is one entry of a line discount breakdown.
type DiscountPart struct {
	Label      string `json:"label"`
	Type       Level  `json:"type"`
	Amount     string `json:"amount"`
	CouponCode string `json:"couponCode,omitempty"`
}

// LineTotals are the published figures of one line.
type LineTotals struct {
	RowKey            string         `json:"rowKey"`
	ID                string         `json:"id"`
	Qty               string         `json:"qty"`
	Price             string         `json:"price"`
	PriceTotal        string         `json:"priceTotal"`
	Subtotal          string         `json:"subtotal"`
	PriceTarget       string         `json:"priceTarget"`
	Discount          string         `json:"discount"`
	DiscountTotal     string         `json:"discountTotal"`
	Tax               string         `json:"tax"`
	TaxTotal          string         `json:"taxTotal"`
	Total             string         `json:"total"`
	AppliedCouponCode string         `json:"appliedCouponCode,omitempty"`
	DiscountBreakdown []DiscountPart `json:"discountBreakdown"`
}

// Totals is the published cart surface. Every figure is rounded half-up to
// the calculator precision.
type Totals struct {
	InitialSubtotal               string            `json:"initialSubtotal"`
	SubtotalAfterItemDiscounts    string            `json:"subtotalAfterItemDiscounts"`
	SubtotalLevelDiscount         string            `json:"subtotalLevelDiscount"`
	FinalSubtotal                 string            `json:"finalSubtotal"`
	Tax                           string            `json:"tax"`
	Shipping                      string            `json:"shipping"`
	GrossTotalBeforeTotalDiscount string            `json:"grossTotalBeforeTotalDiscount"`
	TotalLevelDiscount            string            `json:"totalLevelDiscount"`
	Discount                      string            `json:"discount"`
	FinalPayable                  string            `json:"finalPayable"`
	CouponBreakdown               []PublishedCoupon `json:"couponBreakdown"`
	Lines                         []LineTotals      `json:"lines"`
}

func (c Calculator) decimals() int32 {
	if c.Decimals == nil || *c.Decimals < 0 {
		return money.DefaultDecimals
	}
	return *c.Decimals
}

func (c Calculator) strategy() Strategy {
	if c.Strategy == nil {
		return DefaultStrategy{}
	}
	return c.Strategy
}

// Calculate runs a fresh pass over the given lines and coupons.
func (c Calculator) Calculate(items []LineItem, coupons []CouponInput, shipping decimal.Decimal) Result {
	ctx := NewContext(items, coupons, shipping)
	ctx.Decimals = c.decimals()
	ctx = Run(ctx)
	return Result{Context: ctx, Totals: c.Publish(ctx)}
}

// Publish renders the context figures as rounded strings.
func (c Calculator) Publish(ctx Context) Totals {
	places := c.decimals()
	s := c.strategy()
	f := func(m Metric) string { return money.Format(s.Compute(m, ctx), places) }

	totals := Totals{
		InitialSubtotal:               f(MetricInitialSubtotal),
		SubtotalAfterItemDiscounts:    f(MetricSubtotalAfterItemDiscounts),
		SubtotalLevelDiscount:         f(MetricSubtotalLevelDiscount),
		FinalSubtotal:                 f(MetricFinalSubtotal),
		Tax:                           f(MetricTax),
		Shipping:                      f(MetricShipping),
		GrossTotalBeforeTotalDiscount: f(MetricGrossTotalBeforeTotalDiscount),
		TotalLevelDiscount:            f(MetricTotalLevelDiscount),
		Discount:                      f(MetricDiscount),
		FinalPayable:                  f(MetricFinalPayable),
		CouponBreakdown:               make([]PublishedCoupon, 0, len(ctx.CouponBreakdown)),
		Lines:                         make([]LineTotals, 0, len(ctx.Items)),
	}
	for _, e := range ctx.CouponBreakdown {
		totals.CouponBreakdown = append(totals.CouponBreakdown, PublishedCoupon{
			Code:      e.Code,
			Type:      e.Type,
			Value:     e.Value.String(),
			Level:     e.Level,
			Amount:    money.Format(e.Amount, places),
			Allocated: money.Format(e.Allocated, places),
		})
	}
	for _, it := range ctx.Items {
		totals.Lines = append(totals.Lines, publishLine(it, places))
	}
	return totals
}

func publishLine(it LineItem, places int32) LineTotals {
	lf := func(m LineMetric) string { return money.Format(it.Compute(m), places) }
	out := LineTotals{
		RowKey:            it.RowKey,
		ID:                it.ID,
		Qty:               it.Qty.String(),
		Price:             money.Format(it.Price, places),
		PriceTotal:        lf(LinePriceTotal),
		Subtotal:          lf(LineFinalSubtotal),
		PriceTarget:       lf(LinePriceTarget),
		Discount:          lf(LineUnitDiscount),
		DiscountTotal:     lf(LineTotalDiscount),
		Tax:               lf(LineTax),
		TaxTotal:          lf(LineTaxTotal),
		Total:             lf(LineTotal),
		AppliedCouponCode: it.AppliedCouponCode,
		DiscountBreakdown: []DiscountPart{{
			Label:  "item discount",
			Type:   LevelItem,
			Amount: lf(LineItemLevelDiscountTotal),
		}},
	}
	if it.AppliedSubtotalDiscount.IsPositive() {
		label := "coupon discount"
		if it.AppliedCouponCode != "" {
			label = fmt.Sprintf("coupon discount (%s)", it.AppliedCouponCode)
		}
		out.DiscountBreakdown = append(out.DiscountBreakdown, DiscountPart{
			Label:      label,
			Type:       LevelSubtotal,
			Amount:     lf(LineSubtotalLevelDiscount),
			CouponCode: it.AppliedCouponCode,
		})
	}
	return out
}

// AmountFor returns the discount computed for a coupon code in this pass.
func (r Result) AmountFor(code string) (decimal.Decimal, bool) {
	for _, e := range r.Context.CouponBreakdown {
		if e.Code == code {
			return e.Amount, true
		}
	}
	return money.Zero, false
}
