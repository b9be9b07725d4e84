package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobagent/collector-service/internal/metrics"
	"jobagent/collector-service/internal/model"
)

// Upserter persists a batch of records, skipping existing (source, link)
// pairs, and reports how many rows were actually inserted.
type Upserter interface {
	BulkUpsert(ctx context.Context, records []model.JobRecord) (int, error)
}

// EventPublisher announces a finished ingest. Failures must not affect the run.
type EventPublisher interface {
	PublishIngested(ctx context.Context, source string, summary model.FetchSummary)
}

// Worker runs the full collect cycle: pipeline, dedup insert, summary.
type Worker struct {
	pipeline *Pipeline
	store    Upserter
	events   EventPublisher
	logger   *slog.Logger
}

// NewWorker constructs a Worker. events may be nil.
func NewWorker(pipeline *Pipeline, store Upserter, events EventPublisher, logger *slog.Logger) *Worker {
	return &Worker{pipeline: pipeline, store: store, events: events, logger: logger}
}

// Collect runs the pipeline only; nothing is stored.
func (w *Worker) Collect(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	start := time.Now()
	res, err := w.pipeline.Collect(ctx, req)
	if err != nil {
		metrics.RecordRun(sourceOf(req), "error", 0, 0, 0, 0, time.Since(start).Seconds())
		return nil, err
	}
	s := res.Summary
	metrics.RecordRun(sourceOf(req), "ok", s.Fetched, 0, 0, s.Filtered, time.Since(start).Seconds())
	return res, nil
}

// Run executes one collect-and-store cycle. A fetch failure aborts before
// any store write.
func (w *Worker) Run(ctx context.Context, req model.CollectRequest) (*model.CollectResult, error) {
	start := time.Now()
	w.logger.Info("collect started", "url", req.URL, "limit", req.Limit)

	res, err := w.pipeline.Collect(ctx, req)
	if err != nil {
		metrics.RecordRun(sourceOf(req), "error", 0, 0, 0, 0, time.Since(start).Seconds())
		return nil, err
	}

	if err := w.persist(ctx, sourceOf(req), res, start); err != nil {
		return nil, err
	}
	return res, nil
}

// StoreRecords persists records produced outside the feed pipeline, such
// as board API or structured-data results.
func (w *Worker) StoreRecords(ctx context.Context, url, source string, items []model.JobRecord) (*model.CollectResult, error) {
	res := &model.CollectResult{
		Summary: model.FetchSummary{URL: url, Fetched: len(items)},
		Items:   items,
	}
	if err := w.persist(ctx, source, res, time.Now()); err != nil {
		return nil, err
	}
	return res, nil
}

func (w *Worker) persist(ctx context.Context, source string, res *model.CollectResult, start time.Time) error {
	inserted, err := w.store.BulkUpsert(ctx, res.Items)
	if err != nil {
		metrics.RecordRun(source, "error", res.Summary.Fetched, 0, 0, res.Summary.Filtered, time.Since(start).Seconds())
		return fmt.Errorf("bulk upsert: %w", err)
	}

	res.Summary.Inserted = inserted
	res.Summary.Skipped = len(res.Items) - inserted

	s := res.Summary
	metrics.RecordRun(source, "ok", s.Fetched, s.Inserted, s.Skipped, s.Filtered, time.Since(start).Seconds())
	w.logger.Info("collect done",
		"url", s.URL,
		"source", source,
		"fetched", s.Fetched,
		"inserted", s.Inserted,
		"duplicates", s.Skipped,
		"filtered", s.Filtered,
	)

	if w.events != nil && s.Inserted > 0 {
		w.events.PublishIngested(ctx, source, s)
	}
	return nil
}

func sourceOf(req model.CollectRequest) string {
	if req.Source == "" {
		return model.SourceRSS
	}
	return req.Source
}
