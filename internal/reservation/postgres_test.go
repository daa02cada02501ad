package reservation_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/reservation"
)

type memQueries struct {
	mu   sync.Mutex
	rows map[db.ReservationKeyParams]db.CouponReservation
}

func newMemQueries() *memQueries {
	return &memQueries{rows: map[db.ReservationKeyParams]db.CouponReservation{}}
}

func (m *memQueries) UpsertReservation(_ context.Context, arg db.UpsertReservationParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := db.ReservationKeyParams{CouponCode: arg.CouponCode, ReserverType: arg.ReserverType, ReserverID: arg.ReserverID}
	m.rows[key] = db.CouponReservation{
		CouponCode:   arg.CouponCode,
		ReserverType: arg.ReserverType,
		ReserverID:   arg.ReserverID,
		ReservedAt:   arg.ReservedAt,
		ExpiresAt:    arg.ExpiresAt,
	}
	return nil
}

func (m *memQueries) DeleteReservation(_ context.Context, arg db.ReservationKeyParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, arg)
	return nil
}

func (m *memQueries) GetActiveReservation(_ context.Context, arg db.GetActiveReservationParams) (db.CouponReservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[db.ReservationKeyParams{CouponCode: arg.CouponCode, ReserverType: arg.ReserverType, ReserverID: arg.ReserverID}]
	if !ok || !row.ExpiresAt.After(arg.Now) {
		return db.CouponReservation{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *memQueries) CountActiveReservations(_ context.Context, code string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, row := range m.rows {
		if k.CouponCode == code && row.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (m *memQueries) CountActiveReservationsExcept(_ context.Context, arg db.GetActiveReservationParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, row := range m.rows {
		if k.CouponCode != arg.CouponCode || !row.ExpiresAt.After(arg.Now) {
			continue
		}
		if k.ReserverType == arg.ReserverType && k.ReserverID == arg.ReserverID {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memQueries) LockCouponCode(context.Context, string) error { return nil }

func (m *memQueries) PurgeExpiredReservations(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, row := range m.rows {
		if !row.ExpiresAt.After(now) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMemPostgresStore() (*reservation.PostgresStore, *memQueries, *clock) {
	q := newMemQueries()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	// a process-wide mutex stands in for the advisory lock
	var txLock sync.Mutex
	store := &reservation.PostgresStore{
		Q: q,
		InTx: func(ctx context.Context, fn func(reservation.Querier) error) error {
			txLock.Lock()
			defer txLock.Unlock()
			return fn(q)
		},
		Now: c.Now,
	}
	return store, q, c
}

func TestPostgresReserveGetRelease(t *testing.T) {
	store, _, _ := newMemPostgresStore()
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "SAVE10", alice, time.Minute))
	res, found, err := store.Get(ctx, "SAVE10", alice)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, reservation.Redeemer{Kind: "user", ID: "1"}, res.Redeemer)
	require.Equal(t, time.Minute, res.ExpiresAt.Sub(res.ReservedAt))

	locked, err := store.IsLockedByOthers(ctx, "SAVE10", bob)
	require.NoError(t, err)
	require.True(t, locked)

	require.NoError(t, store.Release(ctx, "SAVE10", alice))
	locked, err = store.IsLocked(ctx, "SAVE10", alice)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestPostgresExpiryAndPurge(t *testing.T) {
	store, q, c := newMemPostgresStore()
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "SAVE10", alice, time.Minute))
	require.NoError(t, store.Reserve(ctx, "SAVE10", bob, 0))

	c.Advance(2 * time.Minute)
	n, err := store.CountActive(ctx, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, found, err := store.Get(ctx, "SAVE10", alice)
	require.NoError(t, err)
	require.False(t, found)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)
	require.Len(t, q.rows, 1)
}

func TestPostgresTryReserveIsExclusive(t *testing.T) {
	store, _, _ := newMemPostgresStore()
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		r := reservation.Redeemer{Kind: "user", ID: string(rune('a' + i))}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.TryReserve(ctx, "LAST", r, time.Minute, 2)
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(2), wins)
}

func TestPostgresStoreIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, url))

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	code := "IT-" + time.Now().Format("150405.000000")
	store := reservation.NewPostgresStore(pool)
	t.Cleanup(func() {
		_ = store.Release(ctx, code, alice)
		_ = store.Release(ctx, code, bob)
	})

	ok, err := store.TryReserve(ctx, code, alice, time.Minute, 1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.TryReserve(ctx, code, bob, time.Minute, 1)
	require.NoError(t, err)
	require.False(t, ok)

	n, err := store.CountActive(ctx, code)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
