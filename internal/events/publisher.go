// Package events announces ingest results on Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"jobagent/collector-service/internal/model"
)

// ChannelJobsIngested carries one message per run that inserted rows.
const ChannelJobsIngested = "EVENT_JOBS_INGESTED"

// IngestedEvent is the JSON payload published on ChannelJobsIngested.
type IngestedEvent struct {
	Type     string    `json:"type"`
	Source   string    `json:"source"`
	URL      string    `json:"url"`
	Fetched  int       `json:"fetched"`
	Inserted int       `json:"inserted"`
	Skipped  int       `json:"skipped"`
	At       time.Time `json:"at"`
}

// RedisPublisher publishes ingest events. Publish failures are logged and
// otherwise ignored.
type RedisPublisher struct {
	rdb    *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisPublisher returns a publisher on rdb.
func NewRedisPublisher(rdb *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, logger: logger, now: time.Now}
}

// PublishIngested implements scraper.EventPublisher.
func (p *RedisPublisher) PublishIngested(ctx context.Context, source string, s model.FetchSummary) {
	event, err := json.Marshal(IngestedEvent{
		Type:     ChannelJobsIngested,
		Source:   source,
		URL:      s.URL,
		Fetched:  s.Fetched,
		Inserted: s.Inserted,
		Skipped:  s.Skipped,
		At:       p.now().UTC(),
	})
	if err != nil {
		p.logger.Warn("marshal EVENT_JOBS_INGESTED failed", "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, ChannelJobsIngested, event).Err(); err != nil {
		p.logger.Warn("publish EVENT_JOBS_INGESTED failed", "err", err)
	}
}
