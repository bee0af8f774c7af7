package rendering

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/resume-renderer/internal/observability"
)

// Cache is a concurrency-safe string-keyed map that computes each missing
// value at most once. Concurrent callers asking for the same missing key
// share a single load. Failed loads are not stored and will be retried by
// the next caller.
type Cache[V any] struct {
	name  string
	mu    sync.RWMutex
	items map[string]V
	group singleflight.Group
}

// NewCache creates an empty cache. name labels the cache in metrics.
func NewCache[V any](name string) *Cache[V] {
	return &Cache[V]{
		name:  name,
		items: make(map[string]V),
	}
}

// Get returns the cached value for key, if present
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

// GetOrLoad returns the cached value for key, calling load to compute it if
// absent. The load runs detached from ctx cancellation because its result is
// shared with other callers; ctx only bounds how long this caller waits.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// another flight may have stored the value between Get and DoChan
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		observability.CacheLoads.WithLabelValues(c.name).Inc()

		c.mu.Lock()
		c.items[key] = v
		c.mu.Unlock()
		return v, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Len returns the number of cached entries
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge drops every cached entry
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.items = make(map[string]V)
	c.mu.Unlock()
}
