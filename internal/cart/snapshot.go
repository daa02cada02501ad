package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/db"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// ErrNoSnapshotStore is returned by persistence calls on a cart built
// without a SnapshotStore.
var ErrNoSnapshotStore = errors.New("cart: snapshot store not configured")

// Snapshot is the persisted form of a cart.
type Snapshot struct {
	Items     []pricing.LineItem `json:"items"`
	Coupons   []coupon.Entry     `json:"coupons"`
	CreatedAt time.Time          `json:"createdAt"`
}

// SnapshotStore persists opaque cart payloads keyed by identifier and instance.
type SnapshotStore interface {
	// Insert stores payload and reports false when the key is already taken.
	Insert(ctx context.Context, identifier, instance string, payload []byte) (bool, error)
	Get(ctx context.Context, identifier, instance string) ([]byte, bool, error)
	Delete(ctx context.Context, identifier, instance string) error
}

// Store persists the lines and applied coupons under identifier. An empty
// identifier uses the cart ID.
func (c *Cart) Store(ctx context.Context, identifier string) error {
	if c.snapshots == nil {
		return ErrNoSnapshotStore
	}
	if identifier == "" {
		identifier = c.id
	}
	payload, err := json.Marshal(Snapshot{Items: c.lines, Coupons: c.coupons.Registry().Applied(), CreatedAt: c.createdAt})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	ok, err := c.snapshots.Insert(ctx, identifier, c.instance, payload)
	if err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	if !ok {
		return common.WithDetails(ErrAlreadyStored, identifier)
	}
	c.logger.Info().Str("identifier", identifier).Str("instance", c.instance).Msg("cart stored")
	return nil
}

func (c *Cart) load(ctx context.Context, identifier string) (Snapshot, bool, error) {
	if c.snapshots == nil {
		return Snapshot{}, false, ErrNoSnapshotStore
	}
	payload, found, err := c.snapshots.Get(ctx, identifier, c.instance)
	if err != nil || !found {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode cart: %w", err)
	}
	return snap, true, nil
}

// Restore replaces the cart content with the snapshot stored under
// identifier and deletes the snapshot. A missing snapshot is a no-op.
func (c *Cart) Restore(ctx context.Context, identifier string) error {
	snap, found, err := c.load(ctx, identifier)
	if err != nil || !found {
		return err
	}
	lines := make([]pricing.LineItem, 0, len(snap.Items))
	for _, l := range snap.Items {
		l.Reset()
		lines = append(lines, l)
	}
	if err := c.coupons.Replace(snap.Coupons); err != nil {
		return err
	}
	c.lines = lines
	if !snap.CreatedAt.IsZero() {
		c.createdAt = snap.CreatedAt
	}
	if err := c.snapshots.Delete(ctx, identifier, c.instance); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	c.touch()
	c.logger.Info().Str("identifier", identifier).Int("lines", len(c.lines)).Msg("cart restored")
	return nil
}

// Erase deletes the snapshot stored under identifier.
func (c *Cart) Erase(ctx context.Context, identifier string) error {
	if c.snapshots == nil {
		return ErrNoSnapshotStore
	}
	return c.snapshots.Delete(ctx, identifier, c.instance)
}

// Merge adds the lines and coupons of a stored cart into this one. Lines take
// the cart's default rates unless keepDiscount/keepTax are set; coupons that
// are already registered are skipped. It reports whether a snapshot existed.
func (c *Cart) Merge(ctx context.Context, identifier string, keepDiscount, keepTax bool) (bool, error) {
	snap, found, err := c.load(ctx, identifier)
	if err != nil || !found {
		return false, err
	}
	for _, l := range snap.Items {
		c.addLine(l, keepDiscount, keepTax)
	}
	var fresh []coupon.Entry
	for _, e := range snap.Coupons {
		if !c.coupons.Registry().Has(e.Coupon.Code) {
			fresh = append(fresh, e)
		}
	}
	if err := c.coupons.Restore(fresh); err != nil {
		return false, err
	}
	c.touch()
	return true, nil
}

// RedisSnapshotStore keeps snapshots under "<prefix><instance>:<identifier>".
type RedisSnapshotStore struct {
	Client redis.Cmdable
	Prefix string
	// TTL bounds how long a stored cart lives; zero keeps it forever.
	TTL time.Duration
}

func (s RedisSnapshotStore) key(identifier, instance string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart:snapshot:"
	}
	return prefix + instance + ":" + identifier
}

func (s RedisSnapshotStore) Insert(ctx context.Context, identifier, instance string, payload []byte) (bool, error) {
	return s.Client.SetNX(ctx, s.key(identifier, instance), payload, s.TTL).Result()
}

func (s RedisSnapshotStore) Get(ctx context.Context, identifier, instance string) ([]byte, bool, error) {
	payload, err := s.Client.Get(ctx, s.key(identifier, instance)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s RedisSnapshotStore) Delete(ctx context.Context, identifier, instance string) error {
	return s.Client.Del(ctx, s.key(identifier, instance)).Err()
}

// SnapshotQuerier is the subset of db.Queries used by PostgresSnapshotStore.
type SnapshotQuerier interface {
	InsertCartSnapshot(ctx context.Context, arg db.InsertCartSnapshotParams) (int64, error)
	GetCartSnapshot(ctx context.Context, arg db.CartSnapshotKeyParams) (db.CartSnapshot, error)
	DeleteCartSnapshot(ctx context.Context, arg db.CartSnapshotKeyParams) error
}

// PostgresSnapshotStore keeps snapshots in cart_snapshots.
type PostgresSnapshotStore struct {
	Q SnapshotQuerier
}

func NewPostgresSnapshotStore(pool *pgxpool.Pool) PostgresSnapshotStore {
	return PostgresSnapshotStore{Q: db.New(pool)}
}

func (s PostgresSnapshotStore) Insert(ctx context.Context, identifier, instance string, payload []byte) (bool, error) {
	n, err := s.Q.InsertCartSnapshot(ctx, db.InsertCartSnapshotParams{Identifier: identifier, Instance: instance, Content: payload})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s PostgresSnapshotStore) Get(ctx context.Context, identifier, instance string) ([]byte, bool, error) {
	row, err := s.Q.GetCartSnapshot(ctx, db.CartSnapshotKeyParams{Identifier: identifier, Instance: instance})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return row.Content, true, nil
}

func (s PostgresSnapshotStore) Delete(ctx context.Context, identifier, instance string) error {
	return s.Q.DeleteCartSnapshot(ctx, db.CartSnapshotKeyParams{Identifier: identifier, Instance: instance})
}
