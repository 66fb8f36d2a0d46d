package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"smartLink/domain"
	"smartLink/pkg/apperrors"
)

const (
	defaultLocalSize = 10000
	defaultLocalTTL  = 5 * time.Minute
)

// LocationCache keeps detections in Redis with an in-process LRU in front.
// Redis expires entries on its own, so DeleteExpired only purges the LRU.
type LocationCache struct {
	client *redis.Client
	local  *expirable.LRU[string, domain.LocationCacheEntry]
	now    func() time.Time
}

func NewLocationCache(client *redis.Client, localSize int, localTTL time.Duration) *LocationCache {
	if localSize <= 0 {
		localSize = defaultLocalSize
	}
	if localTTL <= 0 {
		localTTL = defaultLocalTTL
	}
	return &LocationCache{
		client: client,
		local:  expirable.NewLRU[string, domain.LocationCacheEntry](localSize, nil, localTTL),
		now:    time.Now,
	}
}

func locationKey(origin string) string {
	return fmt.Sprintf("location:origin:%s", origin)
}

func (c *LocationCache) Get(ctx context.Context, origin string) (domain.LocationCacheEntry, error) {
	if entry, ok := c.local.Get(origin); ok {
		if !entry.Expired(c.now()) {
			return entry, nil
		}
		c.local.Remove(origin)
	}

	val, err := c.client.Get(ctx, locationKey(origin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LocationCacheEntry{}, apperrors.ErrNotFound
		}
		return domain.LocationCacheEntry{}, fmt.Errorf("failed to get location from Redis: %w", err)
	}

	var entry domain.LocationCacheEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return domain.LocationCacheEntry{}, fmt.Errorf("failed to unmarshal location entry: %w", err)
	}

	c.local.Add(origin, entry)
	return entry, nil
}

func (c *LocationCache) Put(ctx context.Context, entry domain.LocationCacheEntry) error {
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal location entry: %w", err)
	}

	if err := c.client.Set(ctx, locationKey(entry.NetworkOrigin), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store location in Redis: %w", err)
	}

	c.local.Add(entry.NetworkOrigin, entry)
	return nil
}

func (c *LocationCache) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	for _, origin := range c.local.Keys() {
		if entry, ok := c.local.Peek(origin); ok && entry.Expired(now) {
			c.local.Remove(origin)
			removed++
		}
	}
	return removed, nil
}
