// Package lock provides a Redis SET NX mutex used to serialise
// check-and-reserve sequences across processes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL     = 5 * time.Second
	defaultBackoff = 20 * time.Millisecond
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`)

// Locker provides a Redis-backed distributed lock. The lock expires after TTL
// so a crashed holder cannot block other callers forever.
type Locker struct {
	R            redis.Cmdable
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
}

// WithLock executes fn while holding the lock for key. The lock is released
// even if fn returns an error. When the lock cannot be acquired before ctx is
// done, ctx.Err() is returned.
func (l Locker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.R == nil {
		return ErrNotConfigured
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	token, err := l.acquire(ctx, l.Prefix+key)
	if err != nil {
		return err
	}
	defer l.release(l.Prefix+key, token)
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key string) (string, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultBackoff
	}
	token := uuid.NewString()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
