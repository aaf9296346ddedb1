package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// RedisSnapshotCache publishes the latest market snapshot per venue to Redis
// so monitoring collaborators can read it without touching the scan loop.
type RedisSnapshotCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger *logrus.Logger
}

// NewRedisSnapshotCache creates a Redis-backed snapshot cache.
func NewRedisSnapshotCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisSnapshotCache {
	return &RedisSnapshotCache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "snapshot:",
		logger: logger,
	}
}

// SetLatest overwrites the stored snapshot for the snapshot's venue.
func (c *RedisSnapshotCache) SetLatest(ctx context.Context, snapshot *models.MarketSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	key := c.prefix + snapshot.Venue
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{
			"venue": snapshot.Venue,
			"error": err.Error(),
		}).Warn("Failed to store snapshot in Redis")
		return err
	}
	return nil
}

// GetLatest returns the most recent snapshot for a venue, or false when none
// is stored or it has expired.
func (c *RedisSnapshotCache) GetLatest(ctx context.Context, venue string) (*models.MarketSnapshot, bool) {
	data, err := c.redis.Get(ctx, c.prefix+venue).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"venue": venue,
			"error": err.Error(),
		}).Warn("Redis error reading snapshot")
		return nil, false
	}

	var snapshot models.MarketSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		c.logger.WithField("venue", venue).WithError(err).Warn("Failed to deserialize cached snapshot")
		return nil, false
	}
	return &snapshot, true
}

// InvalidatePattern removes all keys matching the glob pattern, e.g.
// "snapshot:*" on a symbol-list change. It returns the number of keys removed.
func (c *RedisSnapshotCache) InvalidatePattern(ctx context.Context, pattern string) int {
	var removed int
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err == nil {
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WithField("pattern", pattern).WithError(err).Warn("Redis scan failed during invalidation")
	}
	return removed
}
