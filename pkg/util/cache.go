package util

import (
	"container/list"
	"sync"
)

type (
	// Cache is a bounded, least-recently-used memo table. Values are built
	// on first request and the oldest entry is evicted once the capacity
	// is exceeded
	Cache[K comparable, V any] struct {
		entries  map[K]*list.Element
		order    *list.List
		capacity int
		mu       sync.Mutex
	}

	// Builder produces the value for a missing cache key
	Builder[V any] func() (V, error)

	cached[K comparable, V any] struct {
		key   K
		value V
	}
)

// NewCache creates a cache holding at most capacity entries. A capacity
// below one is treated as one
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		entries:  map[K]*list.Element{},
		order:    list.New(),
		capacity: max(capacity, 1),
	}
}

// Get returns the cached value for key, calling build on a miss. Failed
// builds are not cached. Concurrent misses on the same key may both build,
// but only the first stored value is ever returned
func (c *Cache[K, V]) Get(key K, build Builder[V]) (V, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	v, err := build()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.order.MoveToFront(e)
		return e.Value.(*cached[K, V]).value, nil
	}
	c.entries[key] = c.order.PushFront(&cached[K, V]{key: key, value: v})
	for c.order.Len() > c.capacity {
		oldest := c.order.Remove(c.order.Back()).(*cached[K, V])
		delete(c.entries, oldest.key)
	}
	return v, nil
}

// Len returns the number of cached entries
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.order.MoveToFront(e)
		return e.Value.(*cached[K, V]).value, true
	}
	var zero V
	return zero, false
}
