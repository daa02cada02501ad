package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/money"
)

// DiscountType describes how a coupon value is interpreted.
type DiscountType string

const (
	// DiscountPercentage treats the value as a percentage of the base it applies to.
	DiscountPercentage DiscountType = "percentage"
	// DiscountSubtraction treats the value as a flat amount taken off the base.
	DiscountSubtraction DiscountType = "subtraction"
	// DiscountFixed is a flat amount as well; kept distinct for display.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountSubtraction, DiscountFixed:
		return true
	}
	return false
}

// IsFlat reports whether the value is an absolute amount.
func (t DiscountType) IsFlat() bool {
	return t == DiscountSubtraction || t == DiscountFixed
}

// Level is the scope a coupon discount applies to.
type Level string

const (
	LevelItem     Level = "item"
	LevelSubtotal Level = "subtotal"
	LevelTotal    Level = "total"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelItem, LevelSubtotal, LevelTotal:
		return true
	}
	return false
}

// LineItem is one priced, quantified entry of a cart. Derived fields are
// rebuilt from the inputs on every pass.
type LineItem struct {
	ID             string            `json:"id"`
	RowKey         string            `json:"rowKey"`
	Name           string            `json:"name"`
	Price          decimal.Decimal   `json:"price"`
	Qty            decimal.Decimal   `json:"qty"`
	Weight         decimal.Decimal   `json:"weight"`
	Options        map[string]string `json:"options,omitempty"`
	TaxRate        decimal.Decimal   `json:"taxRate"`
	DiscountRate   decimal.Decimal   `json:"discountRate"`
	DiscountAmount decimal.Decimal   `json:"discountAmount"`
	Discountable   bool              `json:"discountable"`

	ItemDiscountPerUnit       decimal.Decimal `json:"-"`
	SubtotalAfterItemDiscount decimal.Decimal `json:"-"`
	AppliedSubtotalDiscount   decimal.Decimal `json:"-"`
	AppliedCouponCode         string          `json:"-"`
	ProportionalWeight        decimal.Decimal `json:"-"`
	FinalSubtotal             decimal.Decimal `json:"-"`
	Tax                       decimal.Decimal `json:"-"`
	TaxTotal                  decimal.Decimal `json:"-"`
	Total                     decimal.Decimal `json:"-"`
}

// Key identifies the line inside a calculation pass.
func (l LineItem) Key() string {
	if l.RowKey != "" {
		return l.RowKey
	}
	return l.ID
}

// Reset clears every derived field.
func (l *LineItem) Reset() {
	l.ItemDiscountPerUnit = money.Zero
	l.SubtotalAfterItemDiscount = money.Zero
	l.AppliedSubtotalDiscount = money.Zero
	l.AppliedCouponCode = ""
	l.ProportionalWeight = money.Zero
	l.FinalSubtotal = money.Zero
	l.Tax = money.Zero
	l.TaxTotal = money.Zero
	l.Total = money.Zero
}

// InitialSubtotal is price * qty before any discount.
func (l LineItem) InitialSubtotal() decimal.Decimal {
	return l.Price.Mul(l.Qty)
}

// LineMetric names a derived line figure.
type LineMetric int

const (
	LinePriceTotal LineMetric = iota
	LineSubtotalAfterItemDiscount
	LineSubtotalLevelDiscount
	LineFinalSubtotal
	LinePriceTarget
	LineTax
	LinePriceTax
	LineTaxTotal
	LineUnitDiscount
	LineItemLevelDiscountTotal
	LineTotalDiscount
	LineTotal
	LineWeightTotal
)

// Compute returns the unrounded value of the metric for this line. The
// result is only meaningful after the line went through a calculation pass.
func (l LineItem) Compute(m LineMetric) decimal.Decimal {
	switch m {
	case LinePriceTotal:
		return l.InitialSubtotal()
	case LineSubtotalAfterItemDiscount:
		return l.SubtotalAfterItemDiscount
	case LineSubtotalLevelDiscount:
		return l.AppliedSubtotalDiscount
	case LineFinalSubtotal:
		return l.FinalSubtotal
	case LinePriceTarget:
		return perUnit(l.FinalSubtotal, l.Qty)
	case LineTax:
		return l.Tax
	case LinePriceTax:
		return perUnit(l.FinalSubtotal, l.Qty).Add(l.Tax)
	case LineTaxTotal:
		return l.TaxTotal
	case LineUnitDiscount:
		return perUnit(l.InitialSubtotal().Sub(l.FinalSubtotal), l.Qty)
	case LineItemLevelDiscountTotal:
		return l.InitialSubtotal().Sub(l.SubtotalAfterItemDiscount)
	case LineTotalDiscount:
		return l.InitialSubtotal().Sub(l.FinalSubtotal)
	case LineTotal:
		return l.Total
	case LineWeightTotal:
		return l.Weight.Mul(l.Qty)
	}
	return money.Zero
}

func perUnit(amount, qty decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return money.Zero
	}
	return amount.Div(qty)
}
