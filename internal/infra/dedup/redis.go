package dedup

import (
	"context"
	"fmt"
	"time"

	"learning_observer/internal/infra/retry"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "dedup:"

// RedisDeduper claims keys with SETNX so each reminder occurrence is sent at most once,
// even across restarts.
type RedisDeduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

func NewRedisClient(ctx context.Context, addr, password string, db int, policy retry.Policy) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	err := policy.Do(ctx, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration, logger *logrus.Entry) *RedisDeduper {
	return &RedisDeduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.WithField("component", "redis_dedup"),
	}
}

// AcquireOnce returns true the first time key is seen within the TTL. If redis is
// unavailable it allows the work rather than dropping it.
func (d *RedisDeduper) AcquireOnce(ctx context.Context, key string) bool {
	full := keyPrefix + key
	ok, err := d.rdb.SetNX(ctx, full, 1, d.ttl).Result()
	if err != nil {
		d.logger.WithError(err).WithField("dedup_key", full).Warn("Redis dedup check failed, allowing processing")
		return true
	}
	if !ok {
		d.logger.WithField("dedup_key", full).Info("Skipped duplicated event")
	}
	return ok
}
