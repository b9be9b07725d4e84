// Package sources collects postings from structured origins: job-board
// APIs and pages carrying JSON-LD JobPosting markup.
package sources

import (
	"context"
	"time"
)

// Getter fetches a remote document. *scraper.Fetcher satisfies it, so every
// source shares its retry and site-policy behaviour.
type Getter interface {
	Get(ctx context.Context, rawURL, accept string, timeout time.Duration) ([]byte, error)
}

const defaultTimeout = 15 * time.Second
