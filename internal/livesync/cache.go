package livesync

import (
	"slices"
	"sync"
	"time"

	"github.com/yigit/unilife/internal/gateway"
)

// Status describes one cache for diagnostics and the view's connectivity indicator.
type Status struct {
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	Loaded     bool      `json:"loaded"`
	Degraded   bool      `json:"degraded"`
	LastError  string    `json:"lastError,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Cache mirrors one remote collection. Every snapshot replaces the contents
// wholesale, in server order.
type Cache[T any] struct {
	query  gateway.Query
	decode func(gateway.Document) (T, error)
	id     func(T) string

	mu        sync.RWMutex
	items     []T
	index     map[string]int
	loaded    bool
	degraded  bool
	lastErr   error
	updatedAt time.Time
}

// NewCache creates an empty cache for q.
func NewCache[T any](q gateway.Query, decode func(gateway.Document) (T, error), id func(T) string) *Cache[T] {
	return &Cache[T]{
		query:  q,
		decode: decode,
		id:     id,
		index:  map[string]int{},
	}
}

// Collection returns the collection name.
func (c *Cache[T]) Collection() string {
	return c.query.Collection
}

// Query returns the subscription query.
func (c *Cache[T]) Query() gateway.Query {
	return c.query
}

// Replace swaps in docs as the new contents and clears the degraded flag.
// Documents that fail to decode are left out and the last such error is
// kept. It returns the number of documents dropped.
func (c *Cache[T]) Replace(docs []gateway.Document) (dropped int, lastErr error) {
	items := make([]T, 0, len(docs))
	index := make(map[string]int, len(docs))
	for _, doc := range docs {
		v, err := c.decode(doc)
		if err != nil {
			dropped++
			lastErr = err
			continue
		}
		index[c.id(v)] = len(items)
		items = append(items, v)
	}

	c.mu.Lock()
	c.items = items
	c.index = index
	c.loaded = true
	c.degraded = false
	c.lastErr = lastErr
	c.updatedAt = time.Now()
	c.mu.Unlock()
	return dropped, lastErr
}

// Fail marks the cache degraded; its contents are kept.
func (c *Cache[T]) Fail(err error) {
	c.mu.Lock()
	c.degraded = true
	c.lastErr = err
	c.mu.Unlock()
}

// Clear empties the cache and resets its flags.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.items = nil
	c.index = map[string]int{}
	c.loaded = false
	c.degraded = false
	c.lastErr = nil
	c.updatedAt = time.Time{}
	c.mu.Unlock()
}

// Items returns a copy of the contents.
func (c *Cache[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Snapshot returns a copy of the contents as a non-nil slice.
func (c *Cache[T]) Snapshot() any {
	items := c.Items()
	if items == nil {
		items = []T{}
	}
	return items
}

// Get returns the item with id.
func (c *Cache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Filter returns the items for which keep is true, in order.
func (c *Cache[T]) Filter(keep func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []T{}
	for _, v := range c.items {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Degraded reports whether the subscription is failing.
func (c *Cache[T]) Degraded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.degraded
}

// Status returns the cache's diagnostic state.
func (c *Cache[T]) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Status{
		Collection: c.query.Collection,
		Documents:  len(c.items),
		Loaded:     c.loaded,
		Degraded:   c.degraded,
		UpdatedAt:  c.updatedAt,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}
