package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// LineInput describes a product to add.
type LineInput struct {
	ID             string            `json:"id" validate:"required,max=191"`
	Name           string            `json:"name" validate:"required"`
	Qty            decimal.Decimal   `json:"qty" validate:"gt=0"`
	Price          decimal.Decimal   `json:"price" validate:"gte=0"`
	Weight         decimal.Decimal   `json:"weight" validate:"gte=0"`
	DiscountAmount decimal.Decimal   `json:"discountAmount" validate:"gte=0"`
	Options        map[string]string `json:"options,omitempty"`
	// Discountable defaults to true.
	Discountable *bool `json:"discountable,omitempty"`
}

// LinePatch updates a line's attributes. Nil fields stay unchanged.
type LinePatch struct {
	ID             *string           `json:"id,omitempty"`
	Name           *string           `json:"name,omitempty"`
	Qty            *decimal.Decimal  `json:"qty,omitempty"`
	Price          *decimal.Decimal  `json:"price,omitempty"`
	Weight         *decimal.Decimal  `json:"weight,omitempty"`
	DiscountAmount *decimal.Decimal  `json:"discountAmount,omitempty"`
	Options        map[string]string `json:"options,omitempty"`
	Discountable   *bool             `json:"discountable,omitempty"`
}

func (in LineInput) line() pricing.LineItem {
	discountable := true
	if in.Discountable != nil {
		discountable = *in.Discountable
	}
	return pricing.LineItem{
		ID:             in.ID,
		RowKey:         common.RowKey(in.ID, in.Options),
		Name:           in.Name,
		Price:          in.Price,
		Qty:            in.Qty,
		Weight:         in.Weight,
		Options:        in.Options,
		DiscountAmount: in.DiscountAmount,
		Discountable:   discountable,
	}
}

func inputOf(l pricing.LineItem) LineInput {
	discountable := l.Discountable
	return LineInput{
		ID:             l.ID,
		Name:           l.Name,
		Qty:            l.Qty,
		Price:          l.Price,
		Weight:         l.Weight,
		DiscountAmount: l.DiscountAmount,
		Options:        l.Options,
		Discountable:   &discountable,
	}
}

func (c *Cart) index(rowKey string) int {
	for i, l := range c.lines {
		if l.RowKey == rowKey {
			return i
		}
	}
	return -1
}

// Add validates in and adds it to the cart. A line with the same id and
// options is merged by summing quantities. The priced line is returned.
func (c *Cart) Add(in LineInput) (pricing.LineItem, error) {
	if err := validateLine(in); err != nil {
		return pricing.LineItem{}, err
	}
	line := c.addLine(in.line(), false, false)
	c.touch()
	got, _ := c.Get(line.RowKey)
	c.logger.Debug().Str("row", line.RowKey).Str("id", line.ID).Str("qty", got.Qty.String()).Msg("line added")
	return got, nil
}

// addLine stores l, applying the cart's default rates unless told to keep the
// line's own. It does not recalculate.
func (c *Cart) addLine(l pricing.LineItem, keepDiscount, keepTax bool) pricing.LineItem {
	if !keepDiscount {
		l.DiscountRate = c.discountRate
	}
	if !keepTax {
		l.TaxRate = c.taxRate
	}
	l.Reset()
	if i := c.index(l.RowKey); i >= 0 {
		l.Qty = l.Qty.Add(c.lines[i].Qty)
		c.lines[i] = l
		return l
	}
	c.lines = append(c.lines, l)
	return l
}

// Update sets the quantity of a line. A quantity of zero or less removes it.
func (c *Cart) Update(rowKey string, qty decimal.Decimal) error {
	i := c.index(rowKey)
	if i < 0 {
		return common.WithDetails(ErrUnknownRow, rowKey)
	}
	if !qty.IsPositive() {
		return c.Remove(rowKey)
	}
	c.lines[i].Qty = qty
	c.touch()
	return nil
}

// UpdateAttributes patches a line. When the id or options change the row key
// is recomputed; if another line already has the new key the two merge and
// the patched line keeps its position. It returns the resulting row key, empty
// when the line was removed.
func (c *Cart) UpdateAttributes(rowKey string, patch LinePatch) (string, error) {
	i := c.index(rowKey)
	if i < 0 {
		return "", common.WithDetails(ErrUnknownRow, rowKey)
	}
	current := c.lines[i]
	in := inputOf(current)
	if patch.ID != nil {
		in.ID = *patch.ID
	}
	if patch.Name != nil {
		in.Name = *patch.Name
	}
	if patch.Qty != nil {
		in.Qty = *patch.Qty
	}
	if patch.Price != nil {
		in.Price = *patch.Price
	}
	if patch.Weight != nil {
		in.Weight = *patch.Weight
	}
	if patch.DiscountAmount != nil {
		in.DiscountAmount = *patch.DiscountAmount
	}
	if patch.Options != nil {
		in.Options = patch.Options
	}
	if patch.Discountable != nil {
		in.Discountable = patch.Discountable
	}

	if !in.Qty.IsPositive() {
		return "", c.Remove(rowKey)
	}
	if err := validateLine(in); err != nil {
		return "", err
	}

	updated := in.line()
	updated.TaxRate = current.TaxRate
	updated.DiscountRate = current.DiscountRate
	if updated.RowKey != rowKey {
		if j := c.index(updated.RowKey); j >= 0 {
			updated.Qty = updated.Qty.Add(c.lines[j].Qty)
			c.lines = append(c.lines[:j], c.lines[j+1:]...)
			if j < i {
				i--
			}
		}
	}
	c.lines[i] = updated
	c.touch()
	return updated.RowKey, nil
}

// Remove deletes a line.
func (c *Cart) Remove(rowKey string) error {
	i := c.index(rowKey)
	if i < 0 {
		return common.WithDetails(ErrUnknownRow, rowKey)
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	c.touch()
	c.logger.Debug().Str("row", rowKey).Msg("line removed")
	return nil
}

func (c *Cart) setLineRate(rowKey string, rate decimal.Decimal, set func(*pricing.LineItem, decimal.Decimal)) error {
	if rate.IsNegative() {
		return ErrInvalidAmount
	}
	i := c.index(rowKey)
	if i < 0 {
		return common.WithDetails(ErrUnknownRow, rowKey)
	}
	set(&c.lines[i], rate)
	c.touch()
	return nil
}

// SetTaxRate sets the tax percentage of one line.
func (c *Cart) SetTaxRate(rowKey string, rate decimal.Decimal) error {
	return c.setLineRate(rowKey, rate, func(l *pricing.LineItem, v decimal.Decimal) { l.TaxRate = v })
}

// SetDiscount sets the per unit discount percentage of one line.
func (c *Cart) SetDiscount(rowKey string, rate decimal.Decimal) error {
	return c.setLineRate(rowKey, rate, func(l *pricing.LineItem, v decimal.Decimal) { l.DiscountRate = v })
}

// SetDiscountAmount sets the fixed per unit discount of one line.
func (c *Cart) SetDiscountAmount(rowKey string, amount decimal.Decimal) error {
	return c.setLineRate(rowKey, amount, func(l *pricing.LineItem, v decimal.Decimal) { l.DiscountAmount = v })
}

// SetGlobalTaxRate sets the default tax rate and applies it to every line.
func (c *Cart) SetGlobalTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidAmount
	}
	c.taxRate = rate
	for i := range c.lines {
		c.lines[i].TaxRate = rate
	}
	c.touch()
	return nil
}

// SetGlobalDiscount sets the default discount rate and applies it to every line.
func (c *Cart) SetGlobalDiscount(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidAmount
	}
	c.discountRate = rate
	for i := range c.lines {
		c.lines[i].DiscountRate = rate
	}
	c.touch()
	return nil
}

// Get returns the priced line.
func (c *Cart) Get(rowKey string) (pricing.LineItem, error) {
	for _, l := range c.result.Context.Items {
		if l.RowKey == rowKey {
			return l, nil
		}
	}
	return pricing.LineItem{}, common.WithDetails(ErrUnknownRow, rowKey)
}

// Line returns the published figures of one line.
func (c *Cart) Line(rowKey string) (pricing.LineTotals, bool) {
	for _, lt := range c.result.Totals.Lines {
		if lt.RowKey == rowKey {
			return lt, true
		}
	}
	return pricing.LineTotals{}, false
}

// Content returns the priced lines in insertion order.
func (c *Cart) Content() []pricing.LineItem {
	out := make([]pricing.LineItem, len(c.result.Context.Items))
	copy(out, c.result.Context.Items)
	return out
}

// Count is the total quantity across lines.
func (c *Cart) Count() decimal.Decimal {
	total := money.Zero
	for _, l := range c.lines {
		total = total.Add(l.Qty)
	}
	return total
}

// CountLines is the number of distinct lines.
func (c *Cart) CountLines() int { return len(c.lines) }

// Weight is the sum of weight * qty.
func (c *Cart) Weight() decimal.Decimal {
	return c.result.Context.Compute(pricing.MetricWeight)
}
