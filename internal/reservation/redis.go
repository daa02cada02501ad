package reservation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-cart/internal/lock"
	"github.com/noah-isme/toko-cart/internal/obs"
)

// RedisConfig tunes a RedisStore. Zero values fall back to defaults.
type RedisConfig struct {
	Prefix           string
	LockPrefix       string
	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	Now              func() time.Time
}

// RedisStore keeps one key per reservation, "<prefix><code>:<kind>:<id>",
// holding the reserved-at unix time and expiring with the reservation. The
// code segment has ":" and "%" percent-encoded so it never spills into the
// redeemer part.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	locker lock.Locker
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	lockPrefix := cfg.LockPrefix
	if lockPrefix == "" {
		lockPrefix = DefaultLockPrefix
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		locker: lock.Locker{R: client, Prefix: lockPrefix, TTL: cfg.LockTTL, RetryBackoff: cfg.LockRetryBackoff},
		now:    now,
	}
}

func (s *RedisStore) key(code string, r Redeemer) string {
	return s.prefix + codeSegment(code) + ":" + r.Key()
}

var codeEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func codeSegment(code string) string {
	return codeEscaper.Replace(code)
}

func (s *RedisStore) Reserve(ctx context.Context, code string, r Redeemer, ttl time.Duration) (err error) {
	defer observe(BackendRedis, "reserve", time.Now(), &err)
	if err = r.validate(); err != nil {
		return err
	}
	return s.set(ctx, code, r, ttl)
}

func (s *RedisStore) set(ctx context.Context, code string, r Redeemer, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(code, r), s.now().Unix(), normalizeTTL(ttl)).Err()
}

func (s *RedisStore) TryReserve(ctx context.Context, code string, r Redeemer, ttl time.Duration, limit int) (ok bool, err error) {
	defer observe(BackendRedis, "try_reserve", time.Now(), &err)
	if err = r.validate(); err != nil {
		return false, err
	}
	if limit < 0 {
		return true, s.set(ctx, code, r, ttl)
	}
	err = s.locker.WithLock(ctx, code, func(ctx context.Context) error {
		others, err := s.countExcept(ctx, code, s.key(code, r))
		if err != nil {
			return err
		}
		if others >= limit {
			return nil
		}
		if err := s.set(ctx, code, r, ttl); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (s *RedisStore) Release(ctx context.Context, code string, r Redeemer) (err error) {
	defer observe(BackendRedis, "release", time.Now(), &err)
	return s.client.Del(ctx, s.key(code, r)).Err()
}

func (s *RedisStore) Get(ctx context.Context, code string, r Redeemer) (res Reservation, found bool, err error) {
	defer observe(BackendRedis, "get", time.Now(), &err)
	key := s.key(code, r)
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Reservation{}, false, nil
	}
	if err != nil {
		return Reservation{}, false, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reservation{}, false, err
	}
	res = Reservation{Code: code, Redeemer: r.Normalized(), ReservedAt: time.Unix(ts, 0)}
	if ttl, err := s.client.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
		res.ExpiresAt = s.now().Add(ttl)
	}
	return res, true, nil
}

func (s *RedisStore) IsLocked(ctx context.Context, code string, r Redeemer) (locked bool, err error) {
	defer observe(BackendRedis, "is_locked", time.Now(), &err)
	n, err := s.client.Exists(ctx, s.key(code, r)).Result()
	return n > 0, err
}

func (s *RedisStore) IsLockedByOthers(ctx context.Context, code string, r Redeemer) (bool, error) {
	n, err := s.CountActiveExcept(ctx, code, r)
	return n > 0, err
}

func (s *RedisStore) CountActive(ctx context.Context, code string) (n int, err error) {
	defer observe(BackendRedis, "count", time.Now(), &err)
	return s.countExcept(ctx, code, "")
}

func (s *RedisStore) CountActiveExcept(ctx context.Context, code string, r Redeemer) (n int, err error) {
	defer observe(BackendRedis, "count_except", time.Now(), &err)
	return s.countExcept(ctx, code, s.key(code, r))
}

func (s *RedisStore) countExcept(ctx context.Context, code, excluded string) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, escapeGlob(s.prefix+codeSegment(code))+":*", 100).Iterator()
	for iter.Next(ctx) {
		if iter.Val() != excluded {
			count++
		}
	}
	return count, iter.Err()
}

func escapeGlob(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(s)
}

func observe(backend, op string, started time.Time, err *error) {
	obs.ObserveReservation(backend, op, started, *err)
}
