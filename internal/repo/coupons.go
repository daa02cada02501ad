// Package repo adapts the generated queries to the domain providers.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

// CouponsQuerier defines the generated queries used by CouponsRepo.
type CouponsQuerier interface {
	GetCouponByCode(ctx context.Context, code string) (db.Coupon, error)
	CountCouponRedemptions(ctx context.Context, arg db.ReservationKeyParams) (int64, error)
	IsCouponRedeemerAllowed(ctx context.Context, arg db.ReservationKeyParams) (bool, error)
	DecrementCouponQuantity(ctx context.Context, code string) (int64, error)
	InsertCouponRedemption(ctx context.Context, arg db.InsertCouponRedemptionParams) (db.CouponRedemption, error)
	UpsertCoupon(ctx context.Context, arg db.Coupon) error
	AllowCouponRedeemer(ctx context.Context, arg db.ReservationKeyParams) error
}

// CouponsRepo is the Postgres coupon.Provider.
type CouponsRepo struct {
	Q CouponsQuerier
	// InTx runs fn inside a transaction. Redeem falls back to Q when nil.
	InTx func(ctx context.Context, fn func(CouponsQuerier) error) error
}

func NewCouponsRepo(pool *pgxpool.Pool) CouponsRepo {
	return CouponsRepo{
		Q: db.New(pool),
		InTx: func(ctx context.Context, fn func(CouponsQuerier) error) error {
			return db.InTx(ctx, pool, func(q *db.Queries) error { return fn(q) })
		},
	}
}

var _ coupon.Provider = CouponsRepo{}

func keyParams(code string, r reservation.Redeemer) db.ReservationKeyParams {
	r = r.Normalized()
	return db.ReservationKeyParams{CouponCode: code, ReserverType: r.Kind, ReserverID: r.ID}
}

func (r CouponsRepo) Lookup(ctx context.Context, code string) (coupon.Coupon, error) {
	row, err := r.Q.GetCouponByCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return coupon.Coupon{}, common.WithDetails(coupon.ErrNotFound, code)
	}
	if err != nil {
		return coupon.Coupon{}, err
	}
	return couponFromRow(row), nil
}

func couponFromRow(row db.Coupon) coupon.Coupon {
	value, _ := db.DecimalFromNumeric(row.DiscountValue)
	c := coupon.Coupon{
		Code:          row.Code,
		DiscountType:  pricing.DiscountType(row.DiscountType),
		DiscountValue: value,
		AppliesTarget: pricing.Level(row.AppliesTarget),
		Enabled:       row.Enabled,
	}
	if row.ExpiresAt.Valid {
		at := row.ExpiresAt.Time
		c.ExpiresAt = &at
	}
	c.MinOrderValue = optionalDecimal(row.MinOrderValue)
	c.DiscountLimit = optionalDecimal(row.DiscountLimit)
	if row.Quantity.Valid {
		q := int(row.Quantity.Int32)
		c.Quantity = &q
	}
	if row.LimitPerRedeemer.Valid {
		l := int(row.LimitPerRedeemer.Int32)
		c.LimitPerRedeemer = &l
	}
	return c
}

func rowFromCoupon(c coupon.Coupon) db.Coupon {
	row := db.Coupon{
		Code:          c.Code,
		DiscountType:  string(c.DiscountType),
		DiscountValue: db.NumericFromDecimal(c.DiscountValue),
		AppliesTarget: string(c.Target()),
		Enabled:       c.Enabled,
	}
	if c.ExpiresAt != nil {
		row.ExpiresAt = pgtype.Timestamptz{Time: *c.ExpiresAt, Valid: true}
	}
	if c.MinOrderValue != nil {
		row.MinOrderValue = db.NumericFromDecimal(*c.MinOrderValue)
	}
	if c.DiscountLimit != nil {
		row.DiscountLimit = db.NumericFromDecimal(*c.DiscountLimit)
	}
	if c.Quantity != nil {
		row.Quantity = pgtype.Int4{Int32: int32(*c.Quantity), Valid: true}
	}
	if c.LimitPerRedeemer != nil {
		row.LimitPerRedeemer = pgtype.Int4{Int32: int32(*c.LimitPerRedeemer), Valid: true}
	}
	return row
}

func optionalDecimal(n pgtype.Numeric) *decimal.Decimal {
	d, ok := db.DecimalFromNumeric(n)
	if !ok {
		return nil
	}
	return &d
}

func (r CouponsRepo) Eligibility(ctx context.Context, code string, red reservation.Redeemer) (coupon.Eligibility, error) {
	allowed, err := r.Q.IsCouponRedeemerAllowed(ctx, keyParams(code, red))
	if err != nil {
		return coupon.Eligibility{}, fmt.Errorf("check allow list: %w", err)
	}
	used, err := r.Q.CountCouponRedemptions(ctx, keyParams(code, red))
	if err != nil {
		return coupon.Eligibility{}, fmt.Errorf("count redemptions: %w", err)
	}
	return coupon.Eligibility{Allowed: allowed, Redeemed: int(used)}, nil
}

// Save creates or replaces a coupon. When allowed is non-empty the coupon is
// restricted to those redeemers.
func (r CouponsRepo) Save(ctx context.Context, c coupon.Coupon, allowed ...reservation.Redeemer) error {
	if c.Code == "" || !c.DiscountType.Valid() {
		return fmt.Errorf("coupon %q: code and a known discount type are required", c.Code)
	}
	return r.tx(ctx, func(q CouponsQuerier) error {
		if err := q.UpsertCoupon(ctx, rowFromCoupon(c)); err != nil {
			return fmt.Errorf("upsert coupon %s: %w", c.Code, err)
		}
		for _, red := range allowed {
			if err := q.AllowCouponRedeemer(ctx, keyParams(c.Code, red)); err != nil {
				return fmt.Errorf("allow %s on %s: %w", red.Key(), c.Code, err)
			}
		}
		return nil
	})
}

func (r CouponsRepo) tx(ctx context.Context, fn func(CouponsQuerier) error) error {
	if r.InTx != nil {
		return r.InTx(ctx, fn)
	}
	return fn(r.Q)
}

// Redeem consumes one unit and records the redemption in one transaction.
func (r CouponsRepo) Redeem(ctx context.Context, code string, red reservation.Redeemer, orderAmount decimal.Decimal) (coupon.Redemption, error) {
	var out coupon.Redemption
	key := keyParams(code, red)
	run := func(q CouponsQuerier) error {
		n, err := q.DecrementCouponQuantity(ctx, code)
		if err != nil {
			return fmt.Errorf("decrement quantity: %w", err)
		}
		if n == 0 {
			return common.WithDetails(coupon.ErrOverQuantity, code)
		}
		row, err := q.InsertCouponRedemption(ctx, db.InsertCouponRedemptionParams{
			CouponCode:   code,
			ReserverType: key.ReserverType,
			ReserverID:   key.ReserverID,
			OrderAmount:  db.NumericFromDecimal(orderAmount),
		})
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}
		amount, _ := db.DecimalFromNumeric(row.OrderAmount)
		out = coupon.Redemption{
			ID:          row.ID,
			Code:        row.CouponCode,
			Redeemer:    reservation.Redeemer{Kind: row.ReserverType, ID: row.ReserverID},
			OrderAmount: amount,
			RedeemedAt:  row.RedeemedAt.In(time.UTC),
		}
		return nil
	}
	if err := r.tx(ctx, run); err != nil {
		return coupon.Redemption{}, err
	}
	return out, nil
}
