package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// PoolProbe pings the database.
func PoolProbe(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

// RedisProbe pings Redis.
func RedisProbe(client redis.Cmdable) Probe {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// Handler serves liveness and readiness for the worker.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration

	draining atomic.Bool
}

// Drain makes readiness fail from now on; called when shutdown starts.
func (h *Handler) Drain() { h.draining.Store(true) }

// Register mounts the endpoints under /health.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health/live", h.Live)
	mux.HandleFunc("/health/ready", h.Ready)
}

func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe and reports per dependency status.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := !h.draining.Load()
	if !healthy {
		status["worker"] = "draining"
	}

	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := h.Probes[name](ctx)
		cancel()
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
