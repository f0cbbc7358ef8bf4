// Package cache defines the port interface for byte-value caches backing the
// response cache and the idempotency store.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value store with per-entry TTLs. Get's second return value
// distinguishes a miss from an empty value; a missing key is not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
