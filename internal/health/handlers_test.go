package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/health"
)

func ok(context.Context) error { return nil }

func ready(t *testing.T, h *health.Handler) (int, map[string]string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var status map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	return rr.Code, status
}

func TestLive(t *testing.T) {
	h := &health.Handler{}
	rr := httptest.NewRecorder()
	h.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestReadyReportsEachProbe(t *testing.T) {
	h := &health.Handler{Probes: map[string]health.Probe{
		"db":    ok,
		"redis": func(context.Context) error { return errors.New("redis down") },
	}, Timeout: 50 * time.Millisecond}

	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "ok", status["db"])
	require.Equal(t, "redis down", status["redis"])
}

func TestReadyHonoursTimeout(t *testing.T) {
	h := &health.Handler{Probes: map[string]health.Probe{
		"db": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}, Timeout: 10 * time.Millisecond}

	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), status["db"])
}

func TestDrainFailsReadiness(t *testing.T) {
	h := &health.Handler{Probes: map[string]health.Probe{"db": ok}}
	code, _ := ready(t, h)
	require.Equal(t, http.StatusOK, code)

	h.Drain()
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["worker"])
}

func TestRedisProbe(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	probe := health.RedisProbe(client)
	require.NoError(t, probe(context.Background()))

	mr.Close()
	require.Error(t, probe(context.Background()))
}
