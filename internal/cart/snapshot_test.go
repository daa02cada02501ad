package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

func TestStoreAndRestore(t *testing.T) {
	e := newEnv(t, limited("TEN", "percentage", "10", pricing.LevelSubtotal, 5))
	ctx := context.Background()
	src := e.cart(t)
	_, err := src.Add(product("sku", "500", "2"))
	require.NoError(t, err)
	_, err = src.ApplyCoupon(ctx, "TEN", "alice", "")
	require.NoError(t, err)

	require.NoError(t, src.Store(ctx, "alice"))
	require.True(t, errors.Is(src.Store(ctx, "alice"), cart.ErrAlreadyStored))

	dst := e.cart(t)
	require.NoError(t, dst.Restore(ctx, "alice"))
	require.Equal(t, 1, dst.CountLines())
	require.Len(t, dst.AppliedCoupons(), 1)
	require.Equal(t, "900.00", dst.Totals().FinalSubtotal)
	require.Equal(t, src.CreatedAt().Unix(), dst.CreatedAt().Unix())

	// restoring consumes the snapshot
	other := e.cart(t)
	require.NoError(t, other.Restore(ctx, "alice"))
	require.Zero(t, other.CountLines())

	// the restored coupon still points at alice's reservation
	require.NoError(t, dst.RemoveCoupon(ctx, "TEN"))
	n, err := e.store.CountActive(ctx, "TEN")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestStoreDefaultsToCartID(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.cart(t)
	_, err := c.Add(product("sku", "1", "1"))
	require.NoError(t, err)

	require.NoError(t, c.Store(ctx, ""))
	require.NoError(t, c.Erase(ctx, c.ID()))
	require.NoError(t, c.Store(ctx, ""))
}

func TestMergeAddsLinesAndSkipsKnownCoupons(t *testing.T) {
	e := newEnv(t, limited("TEN", "percentage", "10", pricing.LevelSubtotal, 5))
	ctx := context.Background()

	saved := e.cart(t)
	_, err := saved.Add(product("a", "100", "1"))
	require.NoError(t, err)
	_, err = saved.Add(product("b", "50", "1"))
	require.NoError(t, err)
	_, err = saved.ApplyCoupon(ctx, "TEN", "alice", "")
	require.NoError(t, err)
	require.NoError(t, saved.Store(ctx, "wish"))

	c := e.cart(t)
	_, err = c.Add(product("a", "100", "2"))
	require.NoError(t, err)
	_, err = c.ApplyCoupon(ctx, "TEN", "alice", "")
	require.NoError(t, err)

	found, err := c.Merge(ctx, "wish", false, false)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2, c.CountLines())
	require.Len(t, c.Coupons(), 1)
	require.Equal(t, "315.00", c.Totals().FinalSubtotal)

	found, err = c.Merge(ctx, "missing", false, false)
	require.NoError(t, err)
	require.False(t, found)
}

func TestPersistenceNeedsStore(t *testing.T) {
	c := newCart(t, cart.Deps{})
	ctx := context.Background()
	require.ErrorIs(t, c.Store(ctx, "x"), cart.ErrNoSnapshotStore)
	require.ErrorIs(t, c.Restore(ctx, "x"), cart.ErrNoSnapshotStore)
	require.ErrorIs(t, c.Erase(ctx, "x"), cart.ErrNoSnapshotStore)
}

type memSnapshots struct {
	rows map[db.CartSnapshotKeyParams][]byte
}

func (m *memSnapshots) InsertCartSnapshot(_ context.Context, arg db.InsertCartSnapshotParams) (int64, error) {
	key := db.CartSnapshotKeyParams{Identifier: arg.Identifier, Instance: arg.Instance}
	if _, ok := m.rows[key]; ok {
		return 0, nil
	}
	m.rows[key] = arg.Content
	return 1, nil
}

func (m *memSnapshots) GetCartSnapshot(_ context.Context, arg db.CartSnapshotKeyParams) (db.CartSnapshot, error) {
	content, ok := m.rows[arg]
	if !ok {
		return db.CartSnapshot{}, pgx.ErrNoRows
	}
	return db.CartSnapshot{Identifier: arg.Identifier, Instance: arg.Instance, Content: content}, nil
}

func (m *memSnapshots) DeleteCartSnapshot(_ context.Context, arg db.CartSnapshotKeyParams) error {
	delete(m.rows, arg)
	return nil
}

func TestPostgresSnapshotStore(t *testing.T) {
	store := cart.PostgresSnapshotStore{Q: &memSnapshots{rows: map[db.CartSnapshotKeyParams][]byte{}}}
	ctx := context.Background()

	c := newCart(t, cart.Deps{Snapshots: store})
	_, err := c.Add(product("sku", "10", "3"))
	require.NoError(t, err)
	require.NoError(t, c.Store(ctx, "bob"))
	require.ErrorIs(t, c.Store(ctx, "bob"), cart.ErrAlreadyStored)

	restored := newCart(t, cart.Deps{Snapshots: store})
	require.NoError(t, restored.Restore(ctx, "bob"))
	require.Equal(t, "30.00", restored.Totals().FinalPayable)

	_, found, err := store.Get(ctx, "bob", cart.DefaultInstance)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRestoreFailureKeepsCart(t *testing.T) {
	store := cart.PostgresSnapshotStore{Q: &memSnapshots{rows: map[db.CartSnapshotKeyParams][]byte{}}}
	ctx := context.Background()
	items := []pricing.LineItem{{ID: "other", RowKey: "other", Price: d("5"), Qty: d("1")}}
	dup := []coupon.Entry{{Coupon: coupon.Coupon{Code: "DUP"}}, {Coupon: coupon.Coupon{Code: "DUP"}}}
	payload, err := json.Marshal(cart.Snapshot{Items: items, Coupons: dup})
	require.NoError(t, err)
	inserted, err := store.Insert(ctx, "broken", cart.DefaultInstance, payload)
	require.NoError(t, err)
	require.True(t, inserted)

	c := newCart(t, cart.Deps{Snapshots: store})
	_, err = c.Add(product("sku", "10", "3"))
	require.NoError(t, err)

	require.ErrorIs(t, c.Restore(ctx, "broken"), coupon.ErrAlreadyRegistered)
	require.Equal(t, 1, c.CountLines())
	require.Empty(t, c.Coupons())
	require.Equal(t, "30.00", c.Totals().FinalPayable)

	_, found, err := store.Get(ctx, "broken", cart.DefaultInstance)
	require.NoError(t, err)
	require.True(t, found)
}
