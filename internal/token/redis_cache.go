package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// RedisCache implements Cache using Redis for shared token storage.
// This implementation is for multi-instance deployments where all instances
// should reuse one token per credential identity instead of each fetching
// its own. Entries carry a TTL slightly below the remote token lifetime so
// stale tokens age out on their own.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed token cache using the given client.
func NewRedisCache(rdb *goredis.Client) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		prefix: "token:",
		ttl:    18 * time.Minute,
	}
}

// Load retrieves a cached token from Redis, returning nil when the key is
// absent or has expired.
func (c *RedisCache) Load(ctx context.Context, identity string) (*Token, error) {
	data, err := c.rdb.Get(ctx, c.prefix+identity).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var token Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to deserialize token: %w", err)
	}
	return &token, nil
}

// Save stores a token in Redis with the cache TTL.
func (c *RedisCache) Save(ctx context.Context, identity string, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	return c.rdb.Set(ctx, c.prefix+identity, string(data), c.ttl).Err()
}

// Delete removes a token from Redis. Idempotent.
func (c *RedisCache) Delete(ctx context.Context, identity string) error {
	return c.rdb.Del(ctx, c.prefix+identity).Err()
}
