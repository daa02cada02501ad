package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getCouponByCode = `-- name: GetCouponByCode :one
SELECT code, discount_type, discount_value, applies_target, expires_at, min_order_value,
       discount_limit, enabled, quantity, limit_per_redeemer
FROM coupons
WHERE code = $1
`

func (q *Queries) GetCouponByCode(ctx context.Context, code string) (Coupon, error) {
	row := q.db.QueryRow(ctx, getCouponByCode, code)
	var i Coupon
	err := row.Scan(
		&i.Code,
		&i.DiscountType,
		&i.DiscountValue,
		&i.AppliesTarget,
		&i.ExpiresAt,
		&i.MinOrderValue,
		&i.DiscountLimit,
		&i.Enabled,
		&i.Quantity,
		&i.LimitPerRedeemer,
	)
	return i, err
}

const countCouponRedemptions = `-- name: CountCouponRedemptions :one
SELECT COUNT(*) FROM coupon_redemptions
WHERE coupon_code = $1 AND reserver_type = $2 AND reserver_id = $3
`

func (q *Queries) CountCouponRedemptions(ctx context.Context, arg ReservationKeyParams) (int64, error) {
	row := q.db.QueryRow(ctx, countCouponRedemptions, arg.CouponCode, arg.ReserverType, arg.ReserverID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const isCouponRedeemerAllowed = `-- name: IsCouponRedeemerAllowed :one
SELECT NOT EXISTS (SELECT 1 FROM coupon_allowed_redeemers a WHERE a.coupon_code = $1)
    OR EXISTS (
        SELECT 1 FROM coupon_allowed_redeemers a
        WHERE a.coupon_code = $1 AND a.reserver_type = $2 AND a.reserver_id = $3
    )
`

// IsCouponRedeemerAllowed is true when the coupon has no allow list or the
// redeemer is on it.
func (q *Queries) IsCouponRedeemerAllowed(ctx context.Context, arg ReservationKeyParams) (bool, error) {
	row := q.db.QueryRow(ctx, isCouponRedeemerAllowed, arg.CouponCode, arg.ReserverType, arg.ReserverID)
	var allowed bool
	err := row.Scan(&allowed)
	return allowed, err
}

const decrementCouponQuantity = `-- name: DecrementCouponQuantity :execrows
UPDATE coupons SET quantity = quantity - 1
WHERE code = $1 AND enabled AND (quantity IS NULL OR quantity > 0)
`

// DecrementCouponQuantity consumes one unit. Zero affected rows means the
// coupon is exhausted or disabled. Unlimited coupons keep a NULL quantity.
func (q *Queries) DecrementCouponQuantity(ctx context.Context, code string) (int64, error) {
	result, err := q.db.Exec(ctx, decrementCouponQuantity, code)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const insertCouponRedemption = `-- name: InsertCouponRedemption :one
INSERT INTO coupon_redemptions (coupon_code, reserver_type, reserver_id, order_amount, redeemed_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, coupon_code, reserver_type, reserver_id, order_amount, redeemed_at
`

type InsertCouponRedemptionParams struct {
	CouponCode   string         `json:"coupon_code"`
	ReserverType string         `json:"reserver_type"`
	ReserverID   string         `json:"reserver_id"`
	OrderAmount  pgtype.Numeric `json:"order_amount"`
}

func (q *Queries) InsertCouponRedemption(ctx context.Context, arg InsertCouponRedemptionParams) (CouponRedemption, error) {
	row := q.db.QueryRow(ctx, insertCouponRedemption, arg.CouponCode, arg.ReserverType, arg.ReserverID, arg.OrderAmount)
	var i CouponRedemption
	err := row.Scan(
		&i.ID,
		&i.CouponCode,
		&i.ReserverType,
		&i.ReserverID,
		&i.OrderAmount,
		&i.RedeemedAt,
	)
	return i, err
}

const upsertCoupon = `-- name: UpsertCoupon :exec
INSERT INTO coupons (code, discount_type, discount_value, applies_target, expires_at, min_order_value,
                     discount_limit, enabled, quantity, limit_per_redeemer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (code) DO UPDATE SET
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    applies_target = EXCLUDED.applies_target,
    expires_at = EXCLUDED.expires_at,
    min_order_value = EXCLUDED.min_order_value,
    discount_limit = EXCLUDED.discount_limit,
    enabled = EXCLUDED.enabled,
    quantity = EXCLUDED.quantity,
    limit_per_redeemer = EXCLUDED.limit_per_redeemer
`

func (q *Queries) UpsertCoupon(ctx context.Context, arg Coupon) error {
	_, err := q.db.Exec(ctx, upsertCoupon,
		arg.Code,
		arg.DiscountType,
		arg.DiscountValue,
		arg.AppliesTarget,
		arg.ExpiresAt,
		arg.MinOrderValue,
		arg.DiscountLimit,
		arg.Enabled,
		arg.Quantity,
		arg.LimitPerRedeemer,
	)
	return err
}

const allowCouponRedeemer = `-- name: AllowCouponRedeemer :exec
INSERT INTO coupon_allowed_redeemers (coupon_code, reserver_type, reserver_id)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`

func (q *Queries) AllowCouponRedeemer(ctx context.Context, arg ReservationKeyParams) error {
	_, err := q.db.Exec(ctx, allowCouponRedeemer, arg.CouponCode, arg.ReserverType, arg.ReserverID)
	return err
}
