package reservation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL applies when a caller passes a non-positive TTL.
	DefaultTTL = 15 * time.Minute
	// DefaultRedisPrefix namespaces reservation keys.
	DefaultRedisPrefix = "cart:condition:reservation:"
	// DefaultLockPrefix namespaces the per-code mutex keys.
	DefaultLockPrefix = "cart:condition:lock:"

	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Store persists reservations. Reads only ever see unexpired entries.
type Store interface {
	// Reserve creates or refreshes the redeemer's reservation.
	Reserve(ctx context.Context, code string, r Redeemer, ttl time.Duration) error
	// TryReserve atomically reserves only when fewer than limit reservations
	// are held by other redeemers. A negative limit means unlimited. A
	// redeemer that already holds a reservation gets it refreshed.
	TryReserve(ctx context.Context, code string, r Redeemer, ttl time.Duration, limit int) (bool, error)
	// Release removes the reservation. Releasing a missing one is not an error.
	Release(ctx context.Context, code string, r Redeemer) error
	Get(ctx context.Context, code string, r Redeemer) (Reservation, bool, error)
	IsLocked(ctx context.Context, code string, r Redeemer) (bool, error)
	IsLockedByOthers(ctx context.Context, code string, r Redeemer) (bool, error)
	CountActive(ctx context.Context, code string) (int, error)
	CountActiveExcept(ctx context.Context, code string, r Redeemer) (int, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend          string
	Redis            redis.Cmdable
	Pool             *pgxpool.Pool
	Prefix           string
	LockPrefix       string
	LockTTL          time.Duration
	LockRetryBackoff time.Duration
}

// New builds the configured backend. With no explicit backend Redis wins when
// a client is available.
func New(opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendPostgres
		if opts.Redis != nil {
			backend = BackendRedis
		}
	}
	switch backend {
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("reservation: %s backend requires a redis client", backend)
		}
		return NewRedisStore(opts.Redis, RedisConfig{
			Prefix:           opts.Prefix,
			LockPrefix:       opts.LockPrefix,
			LockTTL:          opts.LockTTL,
			LockRetryBackoff: opts.LockRetryBackoff,
		}), nil
	case BackendPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("reservation: %s backend requires a database pool", backend)
		}
		return NewPostgresStore(opts.Pool), nil
	default:
		return nil, fmt.Errorf("reservation: unknown backend %q", opts.Backend)
	}
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
