package pipeline

import (
	"fmt"
	"maps"
	"sync"

	"github.com/code19m/errx"
)

// Context is the per-run bag steps use to share state. It is safe for concurrent use.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Values returns a copy of everything stored so far.
func (c *Context) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

func (c *Context) set(name string, v any) {
	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
}

func (c *Context) get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// Key is a typed name in a Context.
type Key[T any] struct {
	name string
}

func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

func (k Key[T]) Name() string { return k.name }

func (k Key[T]) Set(c *Context, v T) {
	c.set(k.name, v)
}

// Get reports false when the key is absent or holds a value of another type.
func (k Key[T]) Get(c *Context) (T, bool) {
	v, ok := c.get(k.name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (k Key[T]) GetOr(c *Context, def T) T {
	if v, ok := k.Get(c); ok {
		return v
	}
	return def
}

// Require returns PIPELINE_CONTEXT_MISSING when the key is not set.
func (k Key[T]) Require(c *Context) (T, error) {
	v, ok := k.Get(c)
	if !ok {
		var zero T
		return zero, errx.New(fmt.Sprintf("pipeline context has no %q", k.name),
			errx.WithCode(CodeContextMissing),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{"key": k.name, "type": fmt.Sprintf("%T", zero)}),
		)
	}
	return v, nil
}
