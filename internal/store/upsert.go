package store

import (
	"context"
	"fmt"
	"time"

	"jobagent/collector-service/internal/model"
)

const (
	maxTitleLen    = 512
	maxCompanyLen  = 256
	maxLocationLen = 256
	maxSourceLen   = 64
)

// insertJobsSQL writes the whole batch as one statement. Rows whose
// (source, link) already exists are skipped; each inserted row returns its
// id, so the caller can count inserts exactly.
const insertJobsSQL = `
	INSERT INTO jobs (title, link, summary, published, company, location, source)
	SELECT * FROM unnest(
		$1::text[], $2::text[], $3::text[], $4::timestamptz[],
		$5::text[], $6::text[], $7::text[]
	)
	ON CONFLICT (source, link) DO NOTHING
	RETURNING id`

// batchColumns is a column-major view of a batch, ready for unnest.
type batchColumns struct {
	titles    []string
	links     []*string
	summaries []*string
	published []*time.Time
	companies []*string
	locations []*string
	sources   []string
}

func newBatchColumns(records []model.JobRecord) batchColumns {
	n := len(records)
	b := batchColumns{
		titles:    make([]string, n),
		links:     make([]*string, n),
		summaries: make([]*string, n),
		published: make([]*time.Time, n),
		companies: make([]*string, n),
		locations: make([]*string, n),
		sources:   make([]string, n),
	}
	for i, r := range records {
		title := truncate(r.Title, maxTitleLen)
		if title == "" {
			title = model.UntitledPlaceholder
		}
		source := truncate(r.Source, maxSourceLen)
		if source == "" {
			source = model.SourceRSS
		}
		b.titles[i] = title
		b.links[i] = r.Link
		b.summaries[i] = r.Summary
		b.published[i] = r.Published
		b.companies[i] = truncatePtr(r.Company, maxCompanyLen)
		b.locations[i] = truncatePtr(r.Location, maxLocationLen)
		b.sources[i] = source
	}
	return b
}

// InsertBatch writes records inside a single transaction. Any failure rolls
// the whole batch back.
func InsertBatch(ctx context.Context, db DBTX, records []model.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	b := newBatchColumns(records)

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, insertJobsSQL,
		b.titles, b.links, b.summaries, b.published,
		b.companies, b.locations, b.sources,
	)
	if err != nil {
		return 0, fmt.Errorf("insert jobs: %w", err)
	}
	inserted := 0
	for rows.Next() {
		inserted++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("insert jobs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

// truncate cuts s to at most n characters (runes, as VARCHAR(n) counts).
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncatePtr(s *string, n int) *string {
	if s == nil {
		return nil
	}
	t := truncate(*s, n)
	return &t
}
