package cache

import "sync"

// Memo is a concurrency-safe map that builds each value at most once.
type Memo[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

// NewMemo creates an empty Memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{
		values: make(map[K]V),
	}
}

// Get retrieves a value by key
func (c *Memo[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores a value, replacing any existing one.
func (c *Memo[K, V]) Set(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = v
}

// GetOrCreate returns the value for key, calling build to create it on the
// first request. build runs under the write lock and must not use the Memo.
func (c *Memo[K, V]) GetOrCreate(key K, build func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.values[key]; ok {
		return v
	}
	v := build()
	c.values[key] = v
	return v
}

// Len returns the number of stored values.
func (c *Memo[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Reset clears all values
func (c *Memo[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[K]V)
}
