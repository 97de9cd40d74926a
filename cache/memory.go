package cache

import (
	"context"
	"path"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Values are stored as-is, so callers must treat
// cached slices and maps as read-only.
type MemoryCache struct {
	mu      sync.RWMutex
	items   map[string]entry
	now     func() time.Time
	name    string
	stop    chan struct{}
	stopped sync.Once

	hits, misses, sets, evictions atomic.Uint64
}

type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithName sets the name reported by Name.
func WithName(name string) MemoryOption {
	return func(c *MemoryCache) {
		c.name = name
	}
}

// NewMemory creates an empty MemoryCache. A positive janitorInterval starts a goroutine
// that purges expired entries until Close is called.
func NewMemory(janitorInterval time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]entry),
		now:   time.Now,
		name:  DriverMemory,
		stop:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if janitorInterval > 0 {
		go c.janitor(janitorInterval)
	}

	return c
}

func (c *MemoryCache) Name() string { return c.name }

func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		c.misses.Add(1)
		return false, nil
	}

	err := assign(dst, e.value)
	if err != nil {
		c.misses.Add(1)
		return false, errx.Wrap(err, errx.WithDetails(errx.D{"key": key}))
	}

	c.hits.Add(1)
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.items[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	c.sets.Add(1)
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	if _, ok := c.items[key]; ok {
		delete(c.items, key)
		c.evictions.Add(1)
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) RemovePattern(_ context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, errx.Wrap(err, errx.WithType(errx.T_Validation), errx.WithDetails(errx.D{"pattern": pattern}))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
			removed++
		}
	}
	c.evictions.Add(uint64(removed)) //nolint:gosec // removed is never negative
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge removes expired entries and returns how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	c.evictions.Add(uint64(removed)) //nolint:gosec // removed is never negative
	return removed
}

func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close stops the janitor. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopped.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}

func assign(dst, value any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errx.New("cache destination must be a non-nil pointer", errx.WithCode(CodeTypeMismatch))
	}

	target := rv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(target.Type()) {
		return errx.New("cached value has a different type",
			errx.WithCode(CodeTypeMismatch),
			errx.WithDetails(errx.D{"stored": v.Type().String(), "requested": target.Type().String()}),
		)
	}
	target.Set(v)
	return nil
}
