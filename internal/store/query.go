package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"jobagent/collector-service/internal/model"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository reads the jobs table.
type Repository struct {
	db DBTX
}

// NewRepository returns a Repository over db.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// List returns jobs matching f, newest (highest id) first. Query is a
// case-insensitive substring match on title.
func (r *Repository) List(ctx context.Context, f model.ListFilter) ([]model.Job, error) {
	qb := psql.
		Select("id", "title", "link", "summary", "published", "company", "location", "source", "created_at").
		From("jobs").
		OrderBy("id DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		qb = qb.Where(sq.ILike{"title": pattern})
	}
	if f.Source != "" {
		qb = qb.Where(sq.Eq{"source": f.Source})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Link, &j.Summary, &j.Published,
			&j.Company, &j.Location, &j.Source, &j.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list jobs scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Stats returns per-source aggregates ordered by source tag.
func (r *Repository) Stats(ctx context.Context) ([]model.SourceStats, error) {
	query, args, err := psql.
		Select("source", "COUNT(*)", "MAX(published)", "MAX(id)").
		From("jobs").
		GroupBy("source").
		OrderBy("source").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make([]model.SourceStats, 0)
	for rows.Next() {
		var s model.SourceStats
		if err := rows.Scan(&s.Source, &s.Count, &s.LastPublished, &s.LastID); err != nil {
			return nil, fmt.Errorf("job stats scan: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
