// Package fifo implements the cache port as a bounded in-memory store with
// TTL expiry and strict oldest-first eviction by insertion order.
package fifo

import (
	"context"
	"sync"
	"time"
)

// entry is an immutable cached value. Replacement swaps the whole entry;
// there is no in-place update.
type entry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time
}

// Stats is a read-only view of the cache, computed on demand.
type Stats struct {
	Entries   int       `json:"entries"`
	Oldest    time.Time `json:"oldest,omitzero"`
	Newest    time.Time `json:"newest,omitzero"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Expired   int64     `json:"expired"`
	Evictions int64     `json:"evictions"`
}

// Cache is a bounded FIFO cache. Eviction on a full insert removes the
// oldest-inserted entry regardless of access frequency. All operations are
// safe for concurrent use; compound check-evict-insert sequences run under a
// single mutex.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // insertion order, oldest first
	maxSize int
	hits    int64
	misses  int64
	expired int64
	evicted int64
	now     func() time.Time // for testing
}

// New creates a Cache holding at most maxSize entries. maxSize below 1 is
// clamped to 1.
func New(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value if present and not expired. A found-but-expired
// entry is removed lazily and reported as a miss.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(key)
		c.expired++
		c.misses++
		return nil, false, nil
	}
	c.hits++
	return e.value, true, nil
}

// Set inserts or replaces the entry for key with expiry now+ttl. When the
// store is full and key is new, the oldest-inserted entry is evicted first.
// A replaced key moves to the back of the eviction order.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; exists {
		c.dropOrderLocked(key)
	} else if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.order = append(c.order, key)
	return nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	return nil
}

// Clear drops every entry. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = nil
}

// Len returns the number of stored entries, including any not yet lazily
// expired.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats computes the current read-only view. Entries past their TTL but not
// yet lazily removed still count until touched.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Expired:   c.expired,
		Evictions: c.evicted,
	}
	for _, e := range c.entries {
		if s.Oldest.IsZero() || e.createdAt.Before(s.Oldest) {
			s.Oldest = e.createdAt
		}
		if e.createdAt.After(s.Newest) {
			s.Newest = e.createdAt
		}
	}
	return s
}

// removeLocked deletes key from both the entry map and the eviction order.
// Must be called with c.mu held.
func (c *Cache) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.dropOrderLocked(key)
}

// dropOrderLocked removes key from the eviction order slice.
// Must be called with c.mu held.
func (c *Cache) dropOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictOldestLocked removes the entry at the front of the insertion order.
// Must be called with c.mu held.
func (c *Cache) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}
	key := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, key)
	c.evicted++
}
