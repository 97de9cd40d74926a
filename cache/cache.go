// Package cache is a TTL memoization layer in front of expensive reads.
//
// The cache is a pure optimization: GetOrSet with a non-positive TTL skips the backend
// entirely, and backend failures are logged and bypassed so callers always get the
// factory result.
package cache

import (
	"context"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/recoengine/logger"
)

const (
	CodeCacheUnavailable = "CACHE_UNAVAILABLE"
	CodeTypeMismatch     = "CACHE_TYPE_MISMATCH"

	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Cache stores values under string keys with a time to live.
type Cache interface {
	// Get loads the value stored under key into dst, which must be a non-nil pointer.
	// It reports false on a miss or expiry.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value under key for ttl. A non-positive ttl is a no-op.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// RemovePattern deletes every key matching the glob pattern and returns how many were removed.
	RemovePattern(ctx context.Context, pattern string) (int, error)
	// Stats returns counters since creation.
	Stats() Stats
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Sets      uint64
	Evictions uint64
	Errors    uint64
}

// Config selects and tunes the cache backend.
type Config struct {
	Driver          string        `yaml:"driver"           default:"memory" validate:"oneof=memory redis"`
	KeyPrefix       string        `yaml:"key_prefix"       default:"recoengine:"`
	JanitorInterval time.Duration `yaml:"janitor_interval" default:"1m"`
	// FeaturesTTL is how long feature snapshots stay cached. Zero disables caching.
	FeaturesTTL time.Duration `yaml:"features_ttl" default:"10m"`
}

// GetOrSet returns the value cached under key, or calls factory, caches its result for
// ttl and returns it. A ttl <= 0 always calls factory and touches nothing.
// Factory errors are returned and never cached. Backend errors are logged and bypassed.
func GetOrSet[T any](
	ctx context.Context,
	c Cache,
	key string,
	ttl time.Duration,
	factory func(ctx context.Context) (T, error),
) (T, error) {
	if ttl <= 0 || c == nil {
		return factory(ctx)
	}

	var cached T
	found, err := c.Get(ctx, key, &cached)
	if err != nil {
		logUnavailable(ctx, c, key, "get", err)
	}
	if found {
		return cached, nil
	}

	value, err := factory(ctx)
	if err != nil {
		var zero T
		return zero, errx.Wrap(err)
	}

	err = c.Set(ctx, key, value, ttl)
	if err != nil {
		logUnavailable(ctx, c, key, "set", err)
	}

	return value, nil
}

// Invalidate removes every key matching any of the patterns, logging failures.
func Invalidate(ctx context.Context, c Cache, patterns ...string) {
	if c == nil {
		return
	}
	for _, p := range patterns {
		_, err := c.RemovePattern(ctx, p)
		if err != nil {
			logUnavailable(ctx, c, p, "remove_pattern", err)
		}
	}
}

func logUnavailable(ctx context.Context, c Cache, key, op string, err error) {
	logger.Named("cache").
		WithContext(ctx).
		Warnx(errx.Wrap(err,
			errx.WithCode(CodeCacheUnavailable),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{"cache": c.Name(), "key": key, "operation": op}),
		))
}
