package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/repo"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

type couponsStub struct {
	rows        map[string]db.Coupon
	allowList   []db.ReservationKeyParams
	allowed     bool
	redeemed    int64
	decremented int
	inserted    []db.InsertCouponRedemptionParams
	insertErr   error
}

func (s *couponsStub) GetCouponByCode(_ context.Context, code string) (db.Coupon, error) {
	row, ok := s.rows[code]
	if !ok {
		return db.Coupon{}, pgx.ErrNoRows
	}
	return row, nil
}

func (s *couponsStub) CountCouponRedemptions(context.Context, db.ReservationKeyParams) (int64, error) {
	return s.redeemed, nil
}

func (s *couponsStub) IsCouponRedeemerAllowed(_ context.Context, arg db.ReservationKeyParams) (bool, error) {
	for _, a := range s.allowList {
		if a == arg {
			return true, nil
		}
	}
	return s.allowed, nil
}

func (s *couponsStub) DecrementCouponQuantity(_ context.Context, code string) (int64, error) {
	row := s.rows[code]
	if !row.Enabled || (row.Quantity.Valid && row.Quantity.Int32 <= 0) {
		return 0, nil
	}
	if row.Quantity.Valid {
		row.Quantity.Int32--
		s.rows[code] = row
	}
	s.decremented++
	return 1, nil
}

func (s *couponsStub) InsertCouponRedemption(_ context.Context, arg db.InsertCouponRedemptionParams) (db.CouponRedemption, error) {
	if s.insertErr != nil {
		return db.CouponRedemption{}, s.insertErr
	}
	s.inserted = append(s.inserted, arg)
	return db.CouponRedemption{
		ID:           int64(len(s.inserted)),
		CouponCode:   arg.CouponCode,
		ReserverType: arg.ReserverType,
		ReserverID:   arg.ReserverID,
		OrderAmount:  arg.OrderAmount,
		RedeemedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

func (s *couponsStub) UpsertCoupon(_ context.Context, arg db.Coupon) error {
	if s.rows == nil {
		s.rows = map[string]db.Coupon{}
	}
	s.rows[arg.Code] = arg
	return nil
}

func (s *couponsStub) AllowCouponRedeemer(_ context.Context, arg db.ReservationKeyParams) error {
	s.allowList = append(s.allowList, arg)
	return nil
}

func numeric(v string) pgtype.Numeric {
	return db.NumericFromDecimal(decimal.RequireFromString(v))
}

func sampleRow() db.Coupon {
	return db.Coupon{
		Code:          "TEN",
		DiscountType:  "percentage",
		DiscountValue: numeric("10"),
		AppliesTarget: "subtotal",
		ExpiresAt:     pgtype.Timestamptz{Time: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		MinOrderValue: numeric("100"),
		Enabled:       true,
		Quantity:      pgtype.Int4{Int32: 1, Valid: true},
	}
}

var alice = reservation.Redeemer{Kind: "user", ID: "alice"}

func TestLookupMapsRow(t *testing.T) {
	r := repo.CouponsRepo{Q: &couponsStub{rows: map[string]db.Coupon{"TEN": sampleRow()}}}

	c, err := r.Lookup(context.Background(), "TEN")
	require.NoError(t, err)
	require.Equal(t, pricing.DiscountPercentage, c.DiscountType)
	require.Equal(t, pricing.LevelSubtotal, c.Target())
	require.True(t, c.DiscountValue.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, c.ExpiresAt)
	require.NotNil(t, c.MinOrderValue)
	require.Nil(t, c.DiscountLimit)
	require.Nil(t, c.LimitPerRedeemer)
	require.Equal(t, 1, *c.Quantity)

	_, err = r.Lookup(context.Background(), "NOPE")
	if !errors.Is(err, coupon.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEligibility(t *testing.T) {
	r := repo.CouponsRepo{Q: &couponsStub{allowed: true, redeemed: 2}}
	e, err := r.Eligibility(context.Background(), "TEN", alice)
	require.NoError(t, err)
	require.True(t, e.Allowed)
	require.Equal(t, 2, e.Redeemed)
}

func TestRedeemConsumesQuantity(t *testing.T) {
	stub := &couponsStub{rows: map[string]db.Coupon{"TEN": sampleRow()}}
	txs := 0
	r := repo.CouponsRepo{Q: stub, InTx: func(ctx context.Context, fn func(repo.CouponsQuerier) error) error {
		txs++
		return fn(stub)
	}}
	ctx := context.Background()

	red, err := r.Redeem(ctx, "TEN", alice, decimal.RequireFromString("900.50"))
	require.NoError(t, err)
	require.Equal(t, int64(1), red.ID)
	require.Equal(t, alice, red.Redeemer)
	require.True(t, red.OrderAmount.Equal(decimal.RequireFromString("900.5")))
	require.Equal(t, 1, txs)

	_, err = r.Redeem(ctx, "TEN", alice, decimal.Zero)
	if !errors.Is(err, coupon.ErrOverQuantity) {
		t.Fatalf("expected ErrOverQuantity, got %v", err)
	}
	require.Len(t, stub.inserted, 1)
}

func TestRedeemSurfacesInsertFailure(t *testing.T) {
	boom := errors.New("boom")
	stub := &couponsStub{rows: map[string]db.Coupon{"TEN": sampleRow()}, insertErr: boom}
	r := repo.CouponsRepo{Q: stub}

	_, err := r.Redeem(context.Background(), "TEN", alice, decimal.Zero)
	require.ErrorIs(t, err, boom)
}

func TestSaveRoundTripsThroughLookup(t *testing.T) {
	stub := &couponsStub{}
	r := repo.CouponsRepo{Q: stub}
	ctx := context.Background()
	limit := decimal.RequireFromString("25")
	qty := 3
	in := coupon.Coupon{
		Code:          "VIP",
		DiscountType:  pricing.DiscountFixed,
		DiscountValue: decimal.RequireFromString("50"),
		AppliesTarget: pricing.LevelTotal,
		DiscountLimit: &limit,
		Enabled:       true,
		Quantity:      &qty,
	}

	require.NoError(t, r.Save(ctx, in, alice))
	require.Len(t, stub.allowList, 1)
	require.Equal(t, "alice", stub.allowList[0].ReserverID)

	out, err := r.Lookup(ctx, "VIP")
	require.NoError(t, err)
	require.Equal(t, pricing.LevelTotal, out.AppliesTarget)
	require.True(t, out.DiscountLimit.Equal(limit))
	require.Equal(t, 3, *out.Quantity)
	require.Nil(t, out.ExpiresAt)

	require.Error(t, r.Save(ctx, coupon.Coupon{Code: "BAD", DiscountType: "bogus"}))
}

func TestRedeemerKeysAreNormalized(t *testing.T) {
	stub := &couponsStub{rows: map[string]db.Coupon{"TEN": sampleRow()}}
	r := repo.CouponsRepo{Q: stub}
	ctx := context.Background()

	require.NoError(t, r.Save(ctx, coupon.Coupon{Code: "VIP", DiscountType: pricing.DiscountFixed, Enabled: true},
		reservation.Redeemer{Kind: " User ", ID: " alice "}))
	require.Equal(t, db.ReservationKeyParams{CouponCode: "VIP", ReserverType: "user", ReserverID: "alice"}, stub.allowList[0])

	e, err := r.Eligibility(ctx, "VIP", reservation.Redeemer{Kind: "USER", ID: "alice"})
	require.NoError(t, err)
	require.True(t, e.Allowed)

	red, err := r.Redeem(ctx, "TEN", reservation.Redeemer{Kind: "User", ID: "alice "}, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, alice, red.Redeemer)
}
