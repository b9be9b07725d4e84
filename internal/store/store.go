// Package store persists job records in Postgres and serves the query
// surface over them.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobagent/collector-service/internal/model"
)

// ErrNilPool is returned when a store is built without a connection pool.
var ErrNilPool = errors.New("store: nil connection pool")

// DBTX is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and
// pgxmock pools.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Acquirer hands out a dedicated connection together with its release func.
type Acquirer interface {
	Acquire(ctx context.Context) (DBTX, func(), error)
}

// PoolAcquirer acquires connections from a pgxpool.
type PoolAcquirer struct {
	Pool *pgxpool.Pool
}

// Acquire implements Acquirer.
func (a PoolAcquirer) Acquire(ctx context.Context) (DBTX, func(), error) {
	if a.Pool == nil {
		return nil, nil, ErrNilPool
	}
	conn, err := a.Pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Release, nil
}

// ─── Writer ──────────────────────────────────────────────────────────────────

// Writer runs every bulk upsert on its own connection, released when the
// call returns whatever the outcome.
type Writer struct {
	acq Acquirer
}

// NewWriter returns a Writer drawing connections from acq.
func NewWriter(acq Acquirer) *Writer {
	return &Writer{acq: acq}
}

// BulkUpsert inserts records in one atomic batch and returns the number of
// rows actually inserted. An empty batch never touches the database.
func (w *Writer) BulkUpsert(ctx context.Context, records []model.JobRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	conn, release, err := w.acq.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer release()

	return InsertBatch(ctx, conn, records)
}
