package cart

import (
	"context"

	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// CouponManager exposes the manager backing the cart's coupons.
func (c *Cart) CouponManager() *coupon.Manager { return c.coupons }

func (c *Cart) redeemer(ctx context.Context, userID, guard string) (reservation.Redeemer, error) {
	if guard == "" {
		guard = c.guard
	}
	return c.resolver.Resolve(ctx, userID, guard)
}

// AddCoupon registers a coupon without applying it.
func (c *Cart) AddCoupon(ctx context.Context, code string) error {
	return c.coupons.Add(ctx, code)
}

// VerifyCoupon checks whether the user could apply code to this cart now.
func (c *Cart) VerifyCoupon(ctx context.Context, code, userID, guard string) error {
	r, err := c.redeemer(ctx, userID, guard)
	if err != nil {
		return err
	}
	_, err = c.coupons.Verify(ctx, code, c, r)
	return err
}

// ApplyCoupon verifies, reserves and applies code for the user.
func (c *Cart) ApplyCoupon(ctx context.Context, code, userID, guard string) (coupon.Entry, error) {
	r, err := c.redeemer(ctx, userID, guard)
	if err != nil {
		return coupon.Entry{}, err
	}
	entry, err := c.coupons.Apply(ctx, code, c, r)
	if err != nil {
		return coupon.Entry{}, err
	}
	c.touch()
	return entry, nil
}

// RemoveCoupon releases and drops code.
func (c *Cart) RemoveCoupon(ctx context.Context, code string) error {
	if err := c.coupons.Unapply(ctx, code); err != nil {
		return err
	}
	c.touch()
	return nil
}

// Coupons returns every registered coupon in registration order.
func (c *Cart) Coupons() []coupon.Entry { return c.coupons.Registry().All() }

// AppliedCoupons returns the applied coupons in registration order.
func (c *Cart) AppliedCoupons() []coupon.Entry { return c.coupons.Registry().Applied() }

// CouponBreakdown returns what each applied coupon contributed in the last pass.
func (c *Cart) CouponBreakdown() []pricing.PublishedCoupon {
	return c.result.Totals.CouponBreakdown
}

// Checkout redeems every applied coupon for the user and recalculates. The
// redemptions that succeeded are returned even when a later one fails.
func (c *Cart) Checkout(ctx context.Context, userID, guard string) ([]coupon.Redemption, error) {
	r, err := c.redeemer(ctx, userID, guard)
	if err != nil {
		return nil, err
	}
	reds, err := c.coupons.ApplyAllUsage(ctx, c, r)
	c.touch()
	if err != nil {
		c.logger.Warn().Err(err).Int("redeemed", len(reds)).Msg("checkout stopped")
		return reds, err
	}
	c.logger.Info().Int("redeemed", len(reds)).Str("payable", c.FinalPayable().String()).Msg("checkout complete")
	return reds, nil
}
