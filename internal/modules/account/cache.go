// README: Redis read-through cache for profiles (JSON, TTL-bounded, dropped on write).
package account

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"routedesk/internal/types"
)

const DefaultCacheTTL = 5 * time.Minute

type Cache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, id types.ID) (*Profile, error)
	Set(ctx context.Context, p *Profile) error
	Invalidate(ctx context.Context, id types.ID) error
}

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{redis: client, ttl: ttl}
}

func profileKey(id types.ID) string {
	return "account:profile:" + string(id)
}

func (c *RedisCache) Get(ctx context.Context, id types.ID) (*Profile, error) {
	raw, err := c.redis.Get(ctx, profileKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		// A stale encoding is a miss.
		return nil, nil
	}
	return &p, nil
}

func (c *RedisCache) Set(ctx context.Context, p *Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, profileKey(p.ID), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, id types.ID) error {
	return c.redis.Del(ctx, profileKey(id)).Err()
}
