package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/jobs"
)

type purgerStub struct {
	calls int
	n     int64
	err   error
}

func (p *purgerStub) PurgeExpired(context.Context) (int64, error) {
	p.calls++
	return p.n, p.err
}

func TestPurgeTaskType(t *testing.T) {
	task := jobs.NewPurgeTask(time.Minute)
	require.Equal(t, jobs.TypePurgeReservations, task.Type())
}

func TestMuxRoutesPurge(t *testing.T) {
	stub := &purgerStub{n: 3}
	mux := jobs.NewMux(jobs.PurgeHandler{Store: stub, Logger: zerolog.Nop()})

	err := mux.ProcessTask(context.Background(), asynq.NewTask(jobs.TypePurgeReservations, nil))
	require.NoError(t, err)
	require.Equal(t, 1, stub.calls)
}

func TestPurgeErrorIsRetried(t *testing.T) {
	boom := errors.New("db down")
	h := jobs.PurgeHandler{Store: &purgerStub{err: boom}, Logger: zerolog.Nop()}

	err := h.ProcessTask(context.Background(), jobs.NewPurgeTask(0))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
