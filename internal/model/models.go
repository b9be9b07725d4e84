// Package model defines shared data structures for the collector service.
package model

import "time"

// Source tags written to jobs.source.
const (
	SourceRSS        = "rss"
	SourceGeneric    = "generic"
	SourceGreenhouse = "greenhouse"
	SourceLever      = "lever"
)

// UntitledPlaceholder replaces a missing or blank entry title.
const UntitledPlaceholder = "(untitled)"

// JobRecord is a normalised posting, ready for persistence.
// (Source, Link) is its dedup identity; a nil Link is never deduplicated.
type JobRecord struct {
	Title     string     `json:"title"`
	Link      *string    `json:"link"`
	Summary   *string    `json:"summary"`
	Published *time.Time `json:"published"`
	Company   *string    `json:"company"`
	Location  *string    `json:"location"`
	Source    string     `json:"source"`
}

// Job is a stored jobs row.
type Job struct {
	ID int64 `json:"id"`
	JobRecord
	CreatedAt time.Time `json:"created_at"`
}

// SourceStats aggregates the jobs table for one source tag.
type SourceStats struct {
	Source        string     `json:"source"`
	Count         int64      `json:"count"`
	LastPublished *time.Time `json:"last_published"`
	LastID        int64      `json:"last_id"`
}

// ListFilter drives the jobs query surface.
type ListFilter struct {
	Query  string
	Source string
	Limit  int
	Offset int
}

// CollectRequest is one on-demand or scheduled pipeline run.
type CollectRequest struct {
	URL                string
	Limit              int
	Timeout            time.Duration
	GuessMetaFromTitle bool
	ExcludeTerms       []string // red-flag terms; any match discards the record
	Source             string
}

// FetchSummary is returned to the caller after a run; it is never persisted.
type FetchSummary struct {
	URL           string `json:"url"`
	Fetched       int    `json:"fetched"`
	Inserted      int    `json:"inserted"`
	Skipped       int    `json:"skipped"`
	Filtered      int    `json:"filtered"`
	ParseAdvisory string `json:"parse_advisory,omitempty"`
}

// CollectResult pairs a summary with the normalised records of the run.
type CollectResult struct {
	Summary FetchSummary
	Items   []JobRecord
}

// StringPtr returns nil for "", otherwise a pointer to s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
