package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

type env struct {
	client   *redis.Client
	store    reservation.Store
	provider *coupon.MemoryProvider
}

func newEnv(t *testing.T, coupons ...coupon.Coupon) *env {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &env{
		client:   client,
		store:    reservation.NewRedisStore(client, reservation.RedisConfig{LockRetryBackoff: time.Millisecond}),
		provider: coupon.NewMemoryProvider(coupons...),
	}
}

func (e *env) cart(t *testing.T) *cart.Cart {
	t.Helper()
	return newCart(t, cart.Deps{
		Coupons:   coupon.NewManager(e.provider, e.store, time.Minute, zerolog.Nop()),
		Snapshots: cart.RedisSnapshotStore{Client: e.client},
	})
}

func limited(code, kind string, value string, level pricing.Level, qty int) coupon.Coupon {
	return coupon.Coupon{
		Code:          code,
		DiscountType:  pricing.DiscountType(kind),
		DiscountValue: d(value),
		AppliesTarget: level,
		Enabled:       true,
		Quantity:      &qty,
	}
}

func TestApplyCouponDiscountsCart(t *testing.T) {
	e := newEnv(t, limited("TEN", "percentage", "10", pricing.LevelSubtotal, 5))
	c := e.cart(t)
	ctx := context.Background()
	_, err := c.Add(product("sku", "500", "2"))
	require.NoError(t, err)

	entry, err := c.ApplyCoupon(ctx, "TEN", "alice", "")
	require.NoError(t, err)
	require.True(t, entry.Applied)
	require.True(t, entry.Discount.Equal(d("100")))
	require.Equal(t, "900.00", c.Totals().FinalSubtotal)

	require.Len(t, c.AppliedCoupons(), 1)
	require.Len(t, c.CouponBreakdown(), 1)
	require.Equal(t, "100.00", c.CouponBreakdown()[0].Amount)

	// the discount follows the cart
	_, err = c.Add(product("sku", "500", "2"))
	require.NoError(t, err)
	applied := c.AppliedCoupons()
	require.True(t, applied[0].Discount.Equal(d("200")))

	held, err := e.store.IsLocked(ctx, "TEN", reservation.Redeemer{Kind: "user", ID: "alice"})
	require.NoError(t, err)
	require.True(t, held)
}

func TestApplyCouponNeedsRedeemer(t *testing.T) {
	e := newEnv(t, limited("TEN", "percentage", "10", pricing.LevelSubtotal, 5))
	c := e.cart(t)

	_, err := c.ApplyCoupon(context.Background(), "TEN", "", "")
	require.True(t, errors.Is(err, coupon.ErrNoRedeemer))
	require.Empty(t, c.Coupons())
}

func TestLastUnitGoesToFirstCart(t *testing.T) {
	e := newEnv(t, limited("ONE", "subtraction", "50", pricing.LevelSubtotal, 1))
	ctx := context.Background()
	first, second := e.cart(t), e.cart(t)
	for _, c := range []*cart.Cart{first, second} {
		_, err := c.Add(product("sku", "100", "1"))
		require.NoError(t, err)
	}

	_, err := first.ApplyCoupon(ctx, "ONE", "alice", "")
	require.NoError(t, err)

	require.True(t, errors.Is(second.VerifyCoupon(ctx, "ONE", "bob", ""), coupon.ErrOverQuantity))
	_, err = second.ApplyCoupon(ctx, "ONE", "bob", "")
	require.True(t, errors.Is(err, coupon.ErrOverQuantity))
	require.Equal(t, "100.00", second.Totals().FinalPayable)

	require.NoError(t, first.RemoveCoupon(ctx, "ONE"))
	require.Equal(t, "100.00", first.Totals().FinalPayable)
	require.Empty(t, first.Coupons())

	_, err = second.ApplyCoupon(ctx, "ONE", "bob", "")
	require.NoError(t, err)
	require.Equal(t, "50.00", second.Totals().FinalPayable)
}

func TestCheckoutRedeemsAppliedCoupons(t *testing.T) {
	e := newEnv(t,
		limited("TEN", "percentage", "10", pricing.LevelSubtotal, 1),
		limited("SHIP", "subtraction", "5", pricing.LevelTotal, 3),
	)
	c := e.cart(t)
	ctx := context.Background()
	_, err := c.Add(product("sku", "500", "2"))
	require.NoError(t, err)
	require.NoError(t, c.AddCoupon(ctx, "SHIP"))
	_, err = c.ApplyCoupon(ctx, "TEN", "alice", "")
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "SHIP", "alice", "")
	require.NoError(t, err)
	require.Equal(t, "895.00", c.Totals().FinalPayable)

	reds, err := c.Checkout(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, reds, 2)
	require.True(t, reds[0].OrderAmount.Equal(d("900")))
	require.Empty(t, c.Coupons())
	require.Equal(t, "1000.00", c.Totals().FinalPayable)

	left, err := e.provider.Lookup(ctx, "TEN")
	require.NoError(t, err)
	require.Equal(t, 0, *left.Quantity)

	n, err := e.store.CountActive(ctx, "TEN")
	require.NoError(t, err)
	require.Zero(t, n)
}
