package db

import (
	"context"
	"time"
)

const upsertReservation = `-- name: UpsertReservation :exec
INSERT INTO coupon_reservations (coupon_code, reserver_type, reserver_id, reserved_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (coupon_code, reserver_type, reserver_id)
DO UPDATE SET reserved_at = EXCLUDED.reserved_at, expires_at = EXCLUDED.expires_at
`

type UpsertReservationParams struct {
	CouponCode   string    `json:"coupon_code"`
	ReserverType string    `json:"reserver_type"`
	ReserverID   string    `json:"reserver_id"`
	ReservedAt   time.Time `json:"reserved_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (q *Queries) UpsertReservation(ctx context.Context, arg UpsertReservationParams) error {
	_, err := q.db.Exec(ctx, upsertReservation,
		arg.CouponCode,
		arg.ReserverType,
		arg.ReserverID,
		arg.ReservedAt,
		arg.ExpiresAt,
	)
	return err
}

const deleteReservation = `-- name: DeleteReservation :exec
DELETE FROM coupon_reservations
WHERE coupon_code = $1 AND reserver_type = $2 AND reserver_id = $3
`

type ReservationKeyParams struct {
	CouponCode   string `json:"coupon_code"`
	ReserverType string `json:"reserver_type"`
	ReserverID   string `json:"reserver_id"`
}

func (q *Queries) DeleteReservation(ctx context.Context, arg ReservationKeyParams) error {
	_, err := q.db.Exec(ctx, deleteReservation, arg.CouponCode, arg.ReserverType, arg.ReserverID)
	return err
}

const getActiveReservation = `-- name: GetActiveReservation :one
SELECT coupon_code, reserver_type, reserver_id, reserved_at, expires_at
FROM coupon_reservations
WHERE coupon_code = $1 AND reserver_type = $2 AND reserver_id = $3 AND expires_at > $4
`

type GetActiveReservationParams struct {
	CouponCode   string    `json:"coupon_code"`
	ReserverType string    `json:"reserver_type"`
	ReserverID   string    `json:"reserver_id"`
	Now          time.Time `json:"now"`
}

func (q *Queries) GetActiveReservation(ctx context.Context, arg GetActiveReservationParams) (CouponReservation, error) {
	row := q.db.QueryRow(ctx, getActiveReservation, arg.CouponCode, arg.ReserverType, arg.ReserverID, arg.Now)
	var i CouponReservation
	err := row.Scan(
		&i.CouponCode,
		&i.ReserverType,
		&i.ReserverID,
		&i.ReservedAt,
		&i.ExpiresAt,
	)
	return i, err
}

const countActiveReservations = `-- name: CountActiveReservations :one
SELECT COUNT(*) FROM coupon_reservations
WHERE coupon_code = $1 AND expires_at > $2
`

func (q *Queries) CountActiveReservations(ctx context.Context, couponCode string, now time.Time) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveReservations, couponCode, now)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countActiveReservationsExcept = `-- name: CountActiveReservationsExcept :one
SELECT COUNT(*) FROM coupon_reservations
WHERE coupon_code = $1 AND expires_at > $4
  AND NOT (reserver_type = $2 AND reserver_id = $3)
`

func (q *Queries) CountActiveReservationsExcept(ctx context.Context, arg GetActiveReservationParams) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveReservationsExcept, arg.CouponCode, arg.ReserverType, arg.ReserverID, arg.Now)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const lockCouponCode = `-- name: LockCouponCode :exec
SELECT pg_advisory_xact_lock(hashtext($1))
`

// LockCouponCode takes a transaction scoped advisory lock on the code.
func (q *Queries) LockCouponCode(ctx context.Context, couponCode string) error {
	_, err := q.db.Exec(ctx, lockCouponCode, couponCode)
	return err
}

const purgeExpiredReservations = `-- name: PurgeExpiredReservations :execrows
DELETE FROM coupon_reservations WHERE expires_at <= $1
`

func (q *Queries) PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, purgeExpiredReservations, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
