package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisCache stores JSON-encoded values in Redis under a key prefix.
type RedisCache struct {
	client redis.UniversalClient
	prefix string

	hits, misses, sets, evictions, errs atomic.Uint64
}

// NewRedis creates a RedisCache. Every key is stored as prefix+key.
func NewRedis(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Name() string { return DriverRedis }

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return false, nil
	}
	if err != nil {
		c.misses.Add(1)
		c.errs.Add(1)
		return false, errx.Wrap(err)
	}

	err = json.Unmarshal(data, dst)
	if err != nil {
		c.misses.Add(1)
		c.errs.Add(1)
		return false, errx.Wrap(err, errx.WithCode(CodeTypeMismatch), errx.WithDetails(errx.D{"key": key}))
	}

	c.hits.Add(1)
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.errs.Add(1)
		return errx.Wrap(err, errx.WithDetails(errx.D{"key": key}))
	}

	err = c.client.Set(ctx, c.prefix+key, data, ttl).Err()
	if err != nil {
		c.errs.Add(1)
		return errx.Wrap(err)
	}

	c.sets.Add(1)
	return nil
}

func (c *RedisCache) Remove(ctx context.Context, key string) error {
	n, err := c.client.Del(ctx, c.prefix+key).Result()
	if err != nil {
		c.errs.Add(1)
		return errx.Wrap(err)
	}
	c.evictions.Add(uint64(n)) //nolint:gosec // DEL never returns a negative count
	return nil
}

// RemovePattern scans for prefix+pattern and deletes matches in batches.
// Redis glob syntax is used, which agrees with path.Match for "*", "?" and "[...]".
func (c *RedisCache) RemovePattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+pattern, scanBatch).Result()
		if err != nil {
			c.errs.Add(1)
			return removed, errx.Wrap(err)
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.errs.Add(1)
				return removed, errx.Wrap(err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.evictions.Add(uint64(removed)) //nolint:gosec // removed is never negative
	return removed, nil
}

func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Errors:    c.errs.Load(),
	}
}
