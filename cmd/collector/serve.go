package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jobagent/collector-service/internal/api"
	"jobagent/collector-service/internal/db"
	"jobagent/collector-service/internal/events"
	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scheduler"
	"jobagent/collector-service/internal/scraper"
	"jobagent/collector-service/internal/sources"
	"jobagent/collector-service/internal/store"
)

const (
	schedulerLockKey = "collector:scheduler:rss"
	shutdownTimeout  = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic feed collector",
	Long:  "Serve the collector API; when RSS_COLLECT_URL is set also collect that feed periodically. Blocks until SIGINT/SIGTERM.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	pool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var (
		publisher scraper.EventPublisher
		lock      scheduler.Locker
	)
	if cfg.RedisURL != "" {
		logger.Info("[collector] connecting to Redis")
		var rdb *redis.Client
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, logger)
		lock = scheduler.NewRedisLock(rdb, schedulerLockKey, cfg.RSSCollectInterval, logger)
		logger.Info("[collector] Redis connected")
	}

	// ── Collectors ───────────────────────────────────────────────────────────
	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	pipeline := scraper.NewPipeline(fetcher, logger)
	worker := scraper.NewWorker(pipeline, store.NewWriter(store.PoolAcquirer{Pool: pool}), publisher, logger)

	var extractor api.PostingExtractor
	if cfg.EnableStructuredExtraction {
		extractor = sources.NewExtractor(fetcher)
	}

	// ── Scheduler ────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled() {
		sched = scheduler.New(worker, model.CollectRequest{
			URL:                cfg.RSSCollectURL,
			Limit:              cfg.RSSCollectLimit,
			GuessMetaFromTitle: true,
			Source:             model.SourceRSS,
		}, cfg.RSSCollectInterval, lock, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	} else {
		logger.Info("[collector] RSS_COLLECT_URL not set, scheduler disabled")
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	bg := api.NewBackground(ctx, cfg.BackgroundConcurrency, logger)
	h := api.NewHandler(api.Deps{
		Collector:  worker,
		Greenhouse: sources.NewGreenhouse(fetcher),
		Lever:      sources.NewLever(fetcher),
		Extractor:  extractor,
		Resolver:   sources.NewResolver(fetcher),
		Jobs:       store.NewRepository(pool),
		Background: bg,
		APIKey:     cfg.APIKey,
		Version:    version,
	}, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(h),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: scraper.MaxTimeout + 30*time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("[collector] listening", "version", version, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("[collector] shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if sched != nil {
			select {
			case <-sched.Stop().Done():
			case <-shutdownCtx.Done():
				logger.Warn("[collector] scheduled run still in progress at shutdown")
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("[collector] http shutdown error", "error", err)
		}
		if err := bg.Shutdown(shutdownCtx); err != nil {
			logger.Warn("[collector] background jobs cancelled at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("[collector] stopped")
	return nil
}
