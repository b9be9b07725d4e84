// Package scheduler wires up the cron job that periodically collects the
// configured feed and stores it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"jobagent/collector-service/internal/metrics"
	"jobagent/collector-service/internal/model"
)

// Runner executes one collect-and-store cycle. Each call acquires and
// releases its own store connection.
type Runner interface {
	Run(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error)
}

// Locker guards a firing across replicas. ok is false when another holder
// owns the lock.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Scheduler wraps robfig/cron and owns the periodic collect loop. It is
// created by the process entrypoint and handed to whoever needs it; it
// keeps no package-level state.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	lock     Locker
	req      model.CollectRequest
	interval time.Duration
	spec     string
	logger   *slog.Logger
}

// New creates a Scheduler that runs req every interval. lock may be nil,
// in which case only in-process overlap is prevented.
func New(runner Runner, req model.CollectRequest, interval time.Duration, lock Locker, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLogger(cronLogger{logger: logger})),
		runner:   runner,
		lock:     lock,
		req:      req,
		interval: interval,
		spec:     fmt.Sprintf("@every %s", interval),
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. It also runs one
// collection immediately so the store is populated without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.wrap(ctx)

	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	s.logger.Info("[scheduler] cron started", "spec", s.spec, "url", s.req.URL)

	go job.Run()

	return nil
}

// Stop halts the scheduler. The returned context is done once any running
// collection has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("[scheduler] cron stopped")
	return ctx
}

// wrap builds the cron job for ctx. Recover keeps a panicking run from
// killing the process; SkipIfStillRunning drops a firing while the previous
// one is still going, including the initial run.
func (s *Scheduler) wrap(ctx context.Context) cron.Job {
	cl := cronLogger{logger: s.logger}
	return cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.RunOnce(ctx) }))
}

// RunOnce performs a single firing. Every failure is logged and swallowed.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx)
		if err != nil {
			metrics.RecordScheduled("error")
			s.logger.Error("[scheduler] lock error", "url", s.req.URL, "error", err)
			return
		}
		if !ok {
			metrics.RecordScheduled("skipped")
			s.logger.Info("[scheduler] another replica is collecting, skipping", "url", s.req.URL)
			return
		}
		defer release()
	}

	runCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	s.logger.Info("[scheduler] collection cycle started", "url", s.req.URL)
	res, err := s.runner.Run(runCtx, s.req)
	if err != nil {
		metrics.RecordScheduled("error")
		s.logger.Error("[scheduler] collection failed", "url", s.req.URL, "error", err)
		return
	}

	metrics.RecordScheduled("ok")
	s.logger.Info("[scheduler] collection cycle complete",
		"url", s.req.URL,
		"fetched", res.Summary.Fetched,
		"inserted", res.Summary.Inserted,
		"skipped", res.Summary.Skipped,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("[cron] "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("[cron] "+msg, append(keysAndValues, "error", err)...)
}
