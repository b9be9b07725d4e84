package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgxmock pools.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// schemaStatements create the jobs table. NULL links never collide under
// the (source, link) constraint, so link-less rows are always inserted.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id         BIGSERIAL PRIMARY KEY,
		title      VARCHAR(512) NOT NULL,
		link       TEXT,
		summary    TEXT,
		published  TIMESTAMPTZ,
		company    VARCHAR(256),
		location   VARCHAR(256),
		source     VARCHAR(64) NOT NULL DEFAULT 'rss',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_jobs_source_link UNIQUE (source, link)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_source ON jobs (source)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_published ON jobs (published DESC)`,
}

// EnsureSchema creates the tables and indexes the service needs. It is
// idempotent and safe to run on every start.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
