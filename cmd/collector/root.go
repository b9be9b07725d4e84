package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"jobagent/collector-service/internal/config"
	"jobagent/collector-service/internal/db"
	"jobagent/collector-service/internal/logging"
	"jobagent/collector-service/internal/policy"
	"jobagent/collector-service/internal/scraper"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Job feed ingestion and dedup service",
	Long:  "collector fetches job feeds and board APIs, normalises postings and stores them without duplicates.",
	// Bare `collector` runs the server so container entrypoints stay simple.
	RunE:         runServe,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")
}

// setup loads the configuration and builds the logger every subcommand
// shares.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logging.New(level), nil
}

// newFetcher builds the shared HTTP fetcher, installing the site policy
// guard when SITE_POLICY_FILE is set.
func newFetcher(cfg *config.Config, logger *slog.Logger) (*scraper.Fetcher, error) {
	var opts []scraper.FetcherOption
	if cfg.SitePolicyFile != "" {
		p, err := policy.LoadFile(cfg.SitePolicyFile)
		if err != nil {
			return nil, fmt.Errorf("site policy: %w", err)
		}
		opts = append(opts, scraper.WithGuard(policy.NewGuard(p, cfg.UserAgent, logger)))
		logger.Info("[collector] site policy loaded", "file", cfg.SitePolicyFile, "sites", len(p.Sites))
	}
	return scraper.NewFetcher(cfg.UserAgent, logger, opts...), nil
}

// connectPostgres opens the pool and makes sure the schema exists.
func connectPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("[collector] connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	logger.Info("[collector] PostgreSQL connected")
	return pool, nil
}
