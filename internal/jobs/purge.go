// Package jobs holds the background tasks run by the worker.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/obs"
)

// TypePurgeReservations is the task type of the reservation purge.
const TypePurgeReservations = "reservation:purge"

// Purger deletes expired reservations and reports how many went.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewPurgeTask builds the purge task. Only one may be queued per interval.
func NewPurgeTask(interval time.Duration) *asynq.Task {
	opts := []asynq.Option{asynq.MaxRetry(3)}
	if interval > 0 {
		opts = append(opts, asynq.Unique(interval))
	}
	return asynq.NewTask(TypePurgeReservations, nil, opts...)
}

// PurgeHandler runs the purge task.
type PurgeHandler struct {
	Store  Purger
	Logger zerolog.Logger
}

func (h PurgeHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	n, err := h.Store.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("purge reservations: %w", err)
	}
	obs.ObservePurged(n)
	if n > 0 {
		h.Logger.Info().Int64("purged", n).Msg("expired reservations purged")
	}
	return nil
}

// NewMux routes every worker task type to its handler.
func NewMux(purge PurgeHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypePurgeReservations, purge)
	return mux
}

// Schedule registers the periodic tasks on s.
func Schedule(s *asynq.Scheduler, purgeInterval time.Duration) error {
	if purgeInterval <= 0 {
		return nil
	}
	spec := fmt.Sprintf("@every %s", purgeInterval)
	if _, err := s.Register(spec, NewPurgeTask(purgeInterval)); err != nil {
		return fmt.Errorf("schedule purge: %w", err)
	}
	return nil
}
