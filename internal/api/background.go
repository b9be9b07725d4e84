package api

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"jobagent/collector-service/internal/metrics"
)

// Background runs fire-and-forget jobs on a context owned by the server
// rather than by the request that queued them. At most `limit` jobs run at
// once; the rest wait their turn.
type Background struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewBackground returns a runner whose jobs inherit parent's values and
// cancellation.
func NewBackground(parent context.Context, limit int, logger *slog.Logger) *Background {
	if limit < 1 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Background{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(limit)),
		logger: logger,
	}
}

// Submit queues fn and returns its job id. It fails once Shutdown has
// been called.
func (b *Background) Submit(name string, fn func(ctx context.Context)) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", errShuttingDown
	}

	id := uuid.NewString()
	b.wg.Add(1)
	go b.run(id, name, fn)
	return id, nil
}

func (b *Background) run(id, name string, fn func(ctx context.Context)) {
	defer b.wg.Done()

	if err := b.sem.Acquire(b.ctx, 1); err != nil {
		b.logger.Warn("[background] job dropped before start", "job_id", id, "job", name, "error", err)
		return
	}
	defer b.sem.Release(1)

	metrics.BackgroundInFlight.Inc()
	defer metrics.BackgroundInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("[background] job panicked", "job_id", id, "job", name, "panic", r)
		}
	}()

	b.logger.Info("[background] job started", "job_id", id, "job", name)
	fn(b.ctx)
	b.logger.Info("[background] job finished", "job_id", id, "job", name)
}

// Shutdown stops accepting jobs and waits for queued and running ones. If
// ctx expires first, running jobs are cancelled and Shutdown returns
// ctx.Err() once they have returned.
func (b *Background) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		return ctx.Err()
	}
}
