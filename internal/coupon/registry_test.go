package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

func TestRegistryOrderAndStates(t *testing.T) {
	r := NewRegistry()
	limit := decimal.NewFromInt(5)
	require.NoError(t, r.Insert(Coupon{Code: "A", DiscountType: pricing.DiscountFixed, DiscountValue: decimal.NewFromInt(3)}))
	require.NoError(t, r.Insert(Coupon{Code: "B", AppliesTarget: pricing.LevelTotal, DiscountLimit: &limit}))
	require.NoError(t, r.Insert(Coupon{Code: "C", AppliesTarget: pricing.LevelItem}))
	require.ErrorIs(t, r.Insert(Coupon{Code: "A"}), ErrAlreadyRegistered)

	require.NoError(t, r.MarkApplied("C", decimal.NewFromInt(1)))
	require.NoError(t, r.MarkApplied("B", decimal.NewFromInt(2)))
	require.ErrorIs(t, r.MarkApplied("Z", decimal.Zero), ErrNotFound)

	inputs := r.Inputs()
	require.Len(t, inputs, 2)
	require.Equal(t, "B", inputs[0].Code)
	require.Equal(t, pricing.LevelTotal, inputs[0].Level)
	require.True(t, inputs[0].Limit.Equal(limit))
	require.Equal(t, pricing.LevelItem, inputs[1].Level)

	require.NoError(t, r.MarkUnapplied("B"))
	require.Len(t, r.Applied(), 1)

	require.True(t, r.Delete("A"))
	require.False(t, r.Delete("A"))
	all := r.All()
	require.Len(t, all, 2)
	require.Equal(t, "B", all[0].Coupon.Code)
	require.Equal(t, "C", all[1].Coupon.Code)

	r.Clear()
	require.Zero(t, r.Len())
}

func TestCouponHelpers(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Coupon{Code: "X", ExpiresAt: &at}
	require.Equal(t, pricing.LevelSubtotal, c.Target())
	require.True(t, c.IsExpired(at))
	require.False(t, c.IsExpired(at.Add(-time.Second)))
	require.False(t, Coupon{}.IsExpired(at))
}

func TestGuardResolver(t *testing.T) {
	r, err := GuardResolver.Resolve(context.Background(), "42", "")
	require.NoError(t, err)
	require.Equal(t, "user:42", r.Key())

	_, err = GuardResolver.Resolve(context.Background(), "", "admin")
	require.ErrorIs(t, err, ErrNoRedeemer)
}
