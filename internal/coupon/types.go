// Package coupon tracks the coupons attached to one cart and drives their
// lifecycle: registered, applied, then used at checkout or removed.
package coupon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// Coupon is the value object supplied by a Provider. It is never mutated once
// captured in a registry entry; re-verification fetches a fresh copy.
type Coupon struct {
	Code          string               `json:"code"`
	DiscountType  pricing.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal      `json:"discountValue"`
	AppliesTarget pricing.Level        `json:"appliesTarget,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	MinOrderValue *decimal.Decimal     `json:"minOrderValue,omitempty"`
	DiscountLimit *decimal.Decimal     `json:"discountLimit,omitempty"`
	Enabled       bool                 `json:"enabled"`
	// Quantity is the number of units still redeemable. Nil means unlimited.
	Quantity         *int `json:"quantity,omitempty"`
	LimitPerRedeemer *int `json:"limitPerRedeemer,omitempty"`
}

// Target is the level the coupon applies to, subtotal unless set.
func (c Coupon) Target() pricing.Level {
	if c.AppliesTarget.Valid() {
		return c.AppliesTarget
	}
	return pricing.LevelSubtotal
}

// IsExpired reports whether the coupon expired at or before now.
func (c Coupon) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// Input converts the coupon into a pricing pipeline input.
func (c Coupon) Input() pricing.CouponInput {
	return pricing.CouponInput{
		Code:  c.Code,
		Type:  c.DiscountType,
		Value: c.DiscountValue,
		Level: c.Target(),
		Limit: c.DiscountLimit,
	}
}

// Eligibility is the provider's view of one redeemer for one coupon.
type Eligibility struct {
	Allowed  bool
	Redeemed int
}

// Redemption records a consumed coupon.
type Redemption struct {
	ID          int64                `json:"id"`
	Code        string               `json:"code"`
	Redeemer    reservation.Redeemer `json:"redeemer"`
	OrderAmount decimal.Decimal      `json:"orderAmount"`
	RedeemedAt  time.Time            `json:"redeemedAt"`
}

// Provider looks coupons up and durably redeems them.
type Provider interface {
	// Lookup returns ErrNotFound when the code does not exist.
	Lookup(ctx context.Context, code string) (Coupon, error)
	Eligibility(ctx context.Context, code string, r reservation.Redeemer) (Eligibility, error)
	// Redeem consumes one unit of the coupon. It is irreversible.
	Redeem(ctx context.Context, code string, r reservation.Redeemer, orderAmount decimal.Decimal) (Redemption, error)
}

// IdentityResolver turns an opaque user id and guard into a redeemer.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID, guard string) (reservation.Redeemer, error)
}

// ResolverFunc adapts a function to IdentityResolver.
type ResolverFunc func(ctx context.Context, userID, guard string) (reservation.Redeemer, error)

func (f ResolverFunc) Resolve(ctx context.Context, userID, guard string) (reservation.Redeemer, error) {
	return f(ctx, userID, guard)
}

// GuardResolver maps the guard name to the redeemer kind, "user" when empty.
// An empty user id resolves to ErrNoRedeemer.
var GuardResolver = ResolverFunc(func(_ context.Context, userID, guard string) (reservation.Redeemer, error) {
	if userID == "" {
		return reservation.Redeemer{}, ErrNoRedeemer
	}
	if guard == "" {
		guard = "user"
	}
	return reservation.Redeemer{Kind: guard, ID: userID}, nil
})

// Cart is what the manager needs from the cart it serves.
type Cart interface {
	InitialSubtotal() decimal.Decimal
	FinalSubtotal() decimal.Decimal
	Recalculate()
	// CouponAmount is the discount the last pass attributed to code.
	CouponAmount(code string) (decimal.Decimal, bool)
}
