// Package ristretto implements the cache port on dgraph-io/ristretto, used
// as the in-process store for idempotency replay entries.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	cacheport "github.com/drawbridge-ai/drawbridge/internal/port/cache"
)

// Cache adapts a ristretto cache to the cache port. Entry cost is the value
// size in bytes, so maxCostBytes bounds total cached payload.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

var _ cacheport.Cache = (*Cache)(nil)

// New creates a ristretto-backed cache holding at most maxCostBytes of
// values.
func New(maxCostBytes int64) (*Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.inner.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores the value with the given TTL. Writes are flushed before
// returning so a replayed request observes its own idempotency record.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	c.inner.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Close releases the cache's background resources.
func (c *Cache) Close() {
	c.inner.Close()
}
