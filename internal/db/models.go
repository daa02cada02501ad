package db

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type CouponReservation struct {
	CouponCode   string    `json:"coupon_code"`
	ReserverType string    `json:"reserver_type"`
	ReserverID   string    `json:"reserver_id"`
	ReservedAt   time.Time `json:"reserved_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type CartSnapshot struct {
	Identifier string    `json:"identifier"`
	Instance   string    `json:"instance"`
	Content    []byte    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Coupon struct {
	Code             string             `json:"code"`
	DiscountType     string             `json:"discount_type"`
	DiscountValue    pgtype.Numeric     `json:"discount_value"`
	AppliesTarget    string             `json:"applies_target"`
	ExpiresAt        pgtype.Timestamptz `json:"expires_at"`
	MinOrderValue    pgtype.Numeric     `json:"min_order_value"`
	DiscountLimit    pgtype.Numeric     `json:"discount_limit"`
	Enabled          bool               `json:"enabled"`
	Quantity         pgtype.Int4        `json:"quantity"`
	LimitPerRedeemer pgtype.Int4        `json:"limit_per_redeemer"`
}

type CouponRedemption struct {
	ID           int64          `json:"id"`
	CouponCode   string         `json:"coupon_code"`
	ReserverType string         `json:"reserver_type"`
	ReserverID   string         `json:"reserver_id"`
	OrderAmount  pgtype.Numeric `json:"order_amount"`
	RedeemedAt   time.Time      `json:"redeemed_at"`
}
