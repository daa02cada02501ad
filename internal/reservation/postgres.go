package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/toko-cart/internal/db"
)

// Querier is the subset of db.Queries the Postgres backend needs.
type Querier interface {
	UpsertReservation(ctx context.Context, arg db.UpsertReservationParams) error
	DeleteReservation(ctx context.Context, arg db.ReservationKeyParams) error
	GetActiveReservation(ctx context.Context, arg db.GetActiveReservationParams) (db.CouponReservation, error)
	CountActiveReservations(ctx context.Context, couponCode string, now time.Time) (int64, error)
	CountActiveReservationsExcept(ctx context.Context, arg db.GetActiveReservationParams) (int64, error)
	LockCouponCode(ctx context.Context, couponCode string) error
	PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}

// TxRunner runs fn with a Querier bound to a single transaction.
type TxRunner func(ctx context.Context, fn func(Querier) error) error

// PostgresStore keeps reservations in coupon_reservations. Expired rows stay
// until PurgeExpired removes them; every read filters on expires_at.
type PostgresStore struct {
	Q    Querier
	InTx TxRunner
	Now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		Q: db.New(pool),
		InTx: func(ctx context.Context, fn func(Querier) error) error {
			return db.InTx(ctx, pool, func(q *db.Queries) error { return fn(q) })
		},
		Now: time.Now,
	}
}

func (s *PostgresStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *PostgresStore) Reserve(ctx context.Context, code string, r Redeemer, ttl time.Duration) (err error) {
	defer observe(BackendPostgres, "reserve", time.Now(), &err)
	if err = r.validate(); err != nil {
		return err
	}
	return s.upsert(ctx, s.Q, code, r, ttl)
}

func (s *PostgresStore) upsert(ctx context.Context, q Querier, code string, r Redeemer, ttl time.Duration) error {
	r = r.Normalized()
	now := s.now()
	return q.UpsertReservation(ctx, db.UpsertReservationParams{
		CouponCode:   code,
		ReserverType: r.Kind,
		ReserverID:   r.ID,
		ReservedAt:   now,
		ExpiresAt:    now.Add(normalizeTTL(ttl)),
	})
}

func (s *PostgresStore) TryReserve(ctx context.Context, code string, r Redeemer, ttl time.Duration, limit int) (ok bool, err error) {
	defer observe(BackendPostgres, "try_reserve", time.Now(), &err)
	if err = r.validate(); err != nil {
		return false, err
	}
	if limit < 0 {
		return true, s.upsert(ctx, s.Q, code, r, ttl)
	}
	err = s.InTx(ctx, func(q Querier) error {
		if err := q.LockCouponCode(ctx, code); err != nil {
			return err
		}
		others, err := q.CountActiveReservationsExcept(ctx, s.params(code, r))
		if err != nil {
			return err
		}
		if others >= int64(limit) {
			return nil
		}
		if err := s.upsert(ctx, q, code, r, ttl); err != nil {
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) params(code string, r Redeemer) db.GetActiveReservationParams {
	r = r.Normalized()
	return db.GetActiveReservationParams{CouponCode: code, ReserverType: r.Kind, ReserverID: r.ID, Now: s.now()}
}

func (s *PostgresStore) Release(ctx context.Context, code string, r Redeemer) (err error) {
	defer observe(BackendPostgres, "release", time.Now(), &err)
	r = r.Normalized()
	return s.Q.DeleteReservation(ctx, db.ReservationKeyParams{CouponCode: code, ReserverType: r.Kind, ReserverID: r.ID})
}

func (s *PostgresStore) Get(ctx context.Context, code string, r Redeemer) (res Reservation, found bool, err error) {
	defer observe(BackendPostgres, "get", time.Now(), &err)
	row, err := s.Q.GetActiveReservation(ctx, s.params(code, r))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, err
	}
	return Reservation{
		Code:       row.CouponCode,
		Redeemer:   Redeemer{Kind: row.ReserverType, ID: row.ReserverID},
		ReservedAt: row.ReservedAt,
		ExpiresAt:  row.ExpiresAt,
	}, true, nil
}

func (s *PostgresStore) IsLocked(ctx context.Context, code string, r Redeemer) (bool, error) {
	_, found, err := s.Get(ctx, code, r)
	return found, err
}

func (s *PostgresStore) IsLockedByOthers(ctx context.Context, code string, r Redeemer) (bool, error) {
	n, err := s.CountActiveExcept(ctx, code, r)
	return n > 0, err
}

func (s *PostgresStore) CountActive(ctx context.Context, code string) (n int, err error) {
	defer observe(BackendPostgres, "count", time.Now(), &err)
	count, err := s.Q.CountActiveReservations(ctx, code, s.now())
	return int(count), err
}

func (s *PostgresStore) CountActiveExcept(ctx context.Context, code string, r Redeemer) (n int, err error) {
	defer observe(BackendPostgres, "count_except", time.Now(), &err)
	count, err := s.Q.CountActiveReservationsExcept(ctx, s.params(code, r))
	return int(count), err
}

// PurgeExpired deletes expired rows and reports how many were removed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (n int64, err error) {
	defer observe(BackendPostgres, "purge", time.Now(), &err)
	return s.Q.PurgeExpiredReservations(ctx, s.now())
}
