package reservation

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsBackend(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(Options{Redis: client})
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, store)

	_, err = New(Options{Backend: "postgres"})
	require.Error(t, err)

	_, err = New(Options{Backend: "memcached", Redis: client})
	require.Error(t, err)
}

func TestRedeemerKey(t *testing.T) {
	require.Equal(t, "user:42", Redeemer{Kind: " User ", ID: "42"}.Key())
	require.ErrorIs(t, Redeemer{Kind: "user"}.validate(), ErrInvalidRedeemer)
}

func TestEscapeGlob(t *testing.T) {
	require.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}
