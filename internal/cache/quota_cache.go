package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// QuotaUsageCache keeps a short-lived copy of each user's search-query count
// so quota checks do not hit MySQL on every request. The DB count stays
// authoritative; entries are invalidated whenever a new query row is written.
type QuotaUsageCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewQuotaUsageCache(client *redisv9.Client, ttl time.Duration) *QuotaUsageCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &QuotaUsageCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *QuotaUsageCache) GetUsage(ctx context.Context, userID uint) (int64, bool, error) {
	raw, err := c.client.Get(ctx, c.usageKey(userID)).Result()
	if err == redisv9.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get quota usage failed: %w", err)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse cached quota usage failed: %w", err)
	}
	return count, true, nil
}

func (c *QuotaUsageCache) SetUsage(ctx context.Context, userID uint, count int64) error {
	if err := c.client.Set(ctx, c.usageKey(userID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set quota usage failed: %w", err)
	}
	return nil
}

func (c *QuotaUsageCache) Invalidate(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, c.usageKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis invalidate quota usage failed: %w", err)
	}
	return nil
}

func (c *QuotaUsageCache) usageKey(userID uint) string {
	return fmt.Sprintf("quota:search:%d", userID)
}
