package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jobagent/collector-service/internal/config"
	"jobagent/collector-service/internal/logging"
	"jobagent/collector-service/internal/model"
	"jobagent/collector-service/internal/scraper"
	"jobagent/collector-service/internal/store"
)

var (
	collectLimit   int
	collectTimeout time.Duration
	collectStore   bool
	collectNoGuess bool
	collectExclude []string
)

var collectCmd = &cobra.Command{
	Use:   "collect <feed-url>",
	Short: "Collect one feed once and print the result",
	Long: "Fetch and normalise a single RSS/Atom feed. With --store the records are " +
		"inserted into PostgreSQL (duplicates skipped) and the summary is printed instead.",
	Args: cobra.ExactArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().IntVarP(&collectLimit, "limit", "n", scraper.DefaultLimit, "maximum entries to normalise (1-200)")
	collectCmd.Flags().DurationVar(&collectTimeout, "timeout", scraper.DefaultTimeout, "fetch timeout including retries (2s-60s)")
	collectCmd.Flags().BoolVar(&collectStore, "store", false, "insert the records into PostgreSQL")
	collectCmd.Flags().BoolVar(&collectNoGuess, "no-guess", false, "do not split company/location out of titles")
	collectCmd.Flags().StringSliceVar(&collectExclude, "exclude", nil, "drop records mentioning any of these terms")
	rootCmd.AddCommand(collectCmd)
}

func runCollect(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := model.CollectRequest{
		URL:                args[0],
		Limit:              collectLimit,
		Timeout:            collectTimeout,
		GuessMetaFromTitle: !collectNoGuess,
		ExcludeTerms:       collectExclude,
		Source:             model.SourceRSS,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if !collectStore {
		// A dry collection needs no database.
		logger := collectLogger(os.Getenv("LOG_LEVEL"))
		fetcher := scraper.NewFetcher(os.Getenv("USER_AGENT"), logger)
		res, err := scraper.NewPipeline(fetcher, logger).Collect(ctx, req)
		if err != nil {
			return err
		}
		return enc.Encode(res.Items)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := collectLogger(cfg.LogLevel)
	pool, err := connectPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	worker := scraper.NewWorker(scraper.NewPipeline(fetcher, logger), store.NewWriter(store.PoolAcquirer{Pool: pool}), nil, logger)
	res, err := worker.Run(ctx, req)
	if err != nil {
		return err
	}
	return enc.Encode(res.Summary)
}

// collectLogger logs to stderr so stdout carries only JSON.
func collectLogger(level string) *slog.Logger {
	if logLevel != "" {
		level = logLevel
	}
	return logging.NewWithWriter(os.Stderr, level)
}
