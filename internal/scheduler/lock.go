package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseTimeout = 5 * time.Second

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a Locker backed by SET NX with an expiry.
type RedisLock struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLock returns a lock stored at key that expires after ttl if the
// holder dies without releasing it.
func NewRedisLock(rdb *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *RedisLock {
	return &RedisLock{rdb: rdb, key: key, ttl: ttl, logger: logger}
}

// TryLock attempts to take the lock without blocking.
func (l *RedisLock) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The run context may already be cancelled by shutdown.
		rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("[scheduler] failed to release lock", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}
