// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an
// error and the process exits.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"jobagent/collector-service/internal/scraper"
)

// Config holds all runtime configuration for the collector service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional: scheduler lock + ingest events
	APIKey      string // optional: guards mutating endpoints

	RSSCollectURL      string // empty disables the scheduler
	RSSCollectInterval time.Duration
	RSSCollectLimit    int

	SitePolicyFile             string
	EnableStructuredExtraction bool
	UserAgent                  string
	BackgroundConcurrency      int
	LogLevel                   string
}

// SchedulerEnabled reports whether a periodic feed is configured.
func (c *Config) SchedulerEnabled() bool {
	return c.RSSCollectURL != ""
}

// Load reads an optional .env file, then environment variables, and returns
// a validated Config. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	interval, err := positiveInt("RSS_COLLECT_INTERVAL_SECONDS", 900)
	if err != nil {
		return nil, err
	}

	limit, err := positiveInt("RSS_COLLECT_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	if limit > scraper.MaxLimit {
		return nil, fmt.Errorf("RSS_COLLECT_LIMIT must be at most %d, got %d", scraper.MaxLimit, limit)
	}

	concurrency, err := positiveInt("BACKGROUND_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	structured := true
	if s := os.Getenv("ENABLE_STRUCTURED_EXTRACTION"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("ENABLE_STRUCTURED_EXTRACTION must be a boolean, got %q", s)
		}
		structured = v
	}

	level := strings.ToUpper(envOr("LOG_LEVEL", "INFO"))
	switch level {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", level)
	}

	return &Config{
		Port:                       envOr("COLLECTOR_PORT", "8080"),
		DatabaseURL:                dbURL,
		RedisURL:                   os.Getenv("REDIS_URL"),
		APIKey:                     os.Getenv("API_KEY"),
		RSSCollectURL:              strings.TrimSpace(os.Getenv("RSS_COLLECT_URL")),
		RSSCollectInterval:         time.Duration(interval) * time.Second,
		RSSCollectLimit:            limit,
		SitePolicyFile:             os.Getenv("SITE_POLICY_FILE"),
		EnableStructuredExtraction: structured,
		UserAgent:                  envOr("USER_AGENT", scraper.DefaultUserAgent),
		BackgroundConcurrency:      concurrency,
		LogLevel:                   level,
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}
