// Package cart is the cart aggregate: an ordered set of lines plus the coupon
// registry, recomputed through the pricing pipeline after every mutation.
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// DefaultInstance names the cart instance when none is configured.
const DefaultInstance = "default"

// Config holds the per-cart defaults. A nil Decimals uses the pricing default.
type Config struct {
	Instance     string
	Guard        string
	Decimals     *int32
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Strategy     pricing.Strategy
}

// ConfigFrom builds per-cart defaults from the loaded pricing settings.
func ConfigFrom(p config.Pricing) Config {
	return Config{Decimals: pricing.Places(p.Decimals), TaxRate: p.DefaultTaxRate}
}

// Deps are the collaborators a cart works with.
type Deps struct {
	Coupons   *coupon.Manager
	Resolver  coupon.IdentityResolver
	Snapshots SnapshotStore
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Cart is owned by a single request or session; it is not safe for
// concurrent use.
type Cart struct {
	id       string
	instance string
	guard    string

	lines        []pricing.LineItem
	shipping     decimal.Decimal
	taxRate      decimal.Decimal
	discountRate decimal.Decimal

	calc      pricing.Calculator
	result    pricing.Result
	coupons   *coupon.Manager
	resolver  coupon.IdentityResolver
	snapshots SnapshotStore
	logger    zerolog.Logger
	now       func() time.Time

	createdAt time.Time
	updatedAt time.Time
}

func New(cfg Config, deps Deps) *Cart {
	instance := cfg.Instance
	if instance == "" {
		instance = DefaultInstance
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	manager := deps.Coupons
	if manager == nil {
		manager = coupon.NewManager(nil, nil, 0, deps.Logger)
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = coupon.GuardResolver
	}
	c := &Cart{
		id:           uuid.NewString(),
		instance:     instance,
		guard:        cfg.Guard,
		shipping:     money.Zero,
		taxRate:      money.ClampZero(cfg.TaxRate),
		discountRate: money.ClampZero(cfg.DiscountRate),
		calc:         pricing.Calculator{Decimals: cfg.Decimals, Strategy: cfg.Strategy},
		coupons:      manager,
		resolver:     resolver,
		snapshots:    deps.Snapshots,
		logger:       obs.Component(deps.Logger, "cart"),
		now:          now,
	}
	c.createdAt = now()
	c.updatedAt = c.createdAt
	c.Recalculate()
	return c
}

// ID is a random identifier usable as the default snapshot key.
func (c *Cart) ID() string { return c.id }

// Instance is the cart instance name, e.g. "default" or "wishlist".
func (c *Cart) Instance() string { return c.instance }

// CreatedAt is when the cart, or the snapshot it was restored from, was created.
func (c *Cart) CreatedAt() time.Time { return c.createdAt }

func (c *Cart) UpdatedAt() time.Time { return c.updatedAt }

// Recalculate reruns the pricing pipeline over the current lines and applied
// coupons and refreshes the discount recorded on each applied coupon. Every
// mutation calls it before returning.
func (c *Cart) Recalculate() {
	c.result = c.calc.Calculate(c.lines, c.coupons.Registry().Inputs(), c.shipping)
	reg := c.coupons.Registry()
	for _, e := range reg.Applied() {
		if amount, ok := c.result.AmountFor(e.Coupon.Code); ok {
			_ = reg.MarkApplied(e.Coupon.Code, amount)
		}
	}
	obs.ObserveRecalculate()
}

func (c *Cart) touch() {
	c.updatedAt = c.now()
	c.Recalculate()
}

// Totals returns the published figures of the last pass.
func (c *Cart) Totals() pricing.Totals { return c.result.Totals }

// Result returns the full context of the last pass.
func (c *Cart) Result() pricing.Result { return c.result }

// InitialSubtotal is the sum of price * qty before any discount.
func (c *Cart) InitialSubtotal() decimal.Decimal {
	return c.result.Context.Compute(pricing.MetricInitialSubtotal)
}

// FinalSubtotal is the subtotal after item and subtotal level discounts.
func (c *Cart) FinalSubtotal() decimal.Decimal {
	return c.result.Context.Compute(pricing.MetricFinalSubtotal)
}

// FinalPayable is the amount due after every discount, tax and shipping.
func (c *Cart) FinalPayable() decimal.Decimal {
	return c.result.Context.Compute(pricing.MetricFinalPayable)
}

// CouponAmount is the discount the last pass attributed to code.
func (c *Cart) CouponAmount(code string) (decimal.Decimal, bool) {
	return c.result.AmountFor(code)
}

// Shipping returns the configured shipping amount.
func (c *Cart) Shipping() decimal.Decimal { return c.shipping }

// SetShipping sets the shipping amount added before total level discounts.
func (c *Cart) SetShipping(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	c.shipping = amount
	c.touch()
	return nil
}

// Destroy empties the cart. Coupon reservations are left to expire.
func (c *Cart) Destroy() {
	c.lines = nil
	c.coupons.Clear()
	c.touch()
}
