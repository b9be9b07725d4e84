package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobagent/collector-service/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	calls atomic.Int32
	err   error
	block chan struct{}
	panic bool
}

func (f *fakeRunner) Run(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.CollectResult{Summary: model.FetchSummary{URL: req.URL, Fetched: 3, Inserted: 2, Skipped: 1}}, nil
}

var testReq = model.CollectRequest{URL: "https://feed.example/rss", Limit: 10}

func TestRunOnce_SwallowsErrors(t *testing.T) {
	r := &fakeRunner{err: errors.New("upstream down")}
	s := New(r, testReq, time.Minute, nil, discardLogger())

	assert.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRunOnce_RunTimesOutAtInterval(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, testReq, 20*time.Millisecond, nil, discardLogger())

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not honour the interval deadline")
	}
}

func TestWrap_RecoversPanic(t *testing.T) {
	r := &fakeRunner{panic: true}
	s := New(r, testReq, time.Minute, nil, discardLogger())

	assert.NotPanics(t, func() { s.wrap(context.Background()).Run() })
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestWrap_SkipsOverlappingFiring(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{})}
	s := New(r, testReq, time.Minute, nil, discardLogger())
	job := s.wrap(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run()
	}()
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	job.Run() // returns immediately: the first run still holds the slot
	assert.Equal(t, int32(1), r.calls.Load())

	close(r.block)
	wg.Wait()
}

func TestStart_RunsImmediately(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, testReq, time.Hour, nil, discardLogger())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStop_WaitsForRunningJob(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, testReq, time.Hour, nil, discardLogger())
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-s.Stop().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop context never completed")
	}
}

// ── Redis lock ─────────────────────────────────────────────────────────────

func newLock(t *testing.T) (*RedisLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLock(rdb, "collector:rss:lock", time.Minute, discardLogger()), mr
}

func TestRedisLock_ExclusiveUntilReleased(t *testing.T) {
	lock, mr := newLock(t)
	ctx := context.Background()

	release, ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("collector:rss:lock"))

	_, ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("collector:rss:lock"))

	_, ok, err = lock.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ReleaseLeavesForeignToken(t *testing.T) {
	lock, mr := newLock(t)

	release, ok, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate expiry and takeover by another replica.
	require.NoError(t, mr.Set("collector:rss:lock", "someone-else"))
	release()

	got, err := mr.Get("collector:rss:lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRunOnce_SkipsWhenLocked(t *testing.T) {
	lock, _ := newLock(t)
	_, ok, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	r := &fakeRunner{}
	New(r, testReq, time.Minute, lock, discardLogger()).RunOnce(context.Background())
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestRunOnce_ReleasesLockAfterRun(t *testing.T) {
	lock, mr := newLock(t)
	r := &fakeRunner{}

	New(r, testReq, time.Minute, lock, discardLogger()).RunOnce(context.Background())
	assert.Equal(t, int32(1), r.calls.Load())
	assert.False(t, mr.Exists("collector:rss:lock"))
}
