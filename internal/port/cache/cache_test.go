package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/drawbridge-ai/drawbridge/internal/port/cache"
)

// mapCache is a minimal in-memory Cache used to exercise the contract suite.
type mapCache struct {
	entries map[string][]byte
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func TestContractSuite(t *testing.T) {
	RunContractTests(t, &mapCache{entries: make(map[string][]byte)})
}

// RunContractTests checks the Cache interface contract against any
// implementation: misses are not errors, deletes are idempotent, and Set
// overwrites.
func RunContractTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetThenGet", func(t *testing.T) {
		if err := c.Set(ctx, "contract-key", []byte("contract-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "contract-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "contract-val" {
			t.Fatalf("Get = %q, %v after Set", val, found)
		}
	})

	t.Run("MissIsNotAnError", func(t *testing.T) {
		_, found, err := c.Get(ctx, "absent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("found an entry that was never stored")
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("entry still present after Delete")
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-stored"); err != nil {
			t.Fatal("deleting an absent key must not error")
		}
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		_ = c.Set(ctx, "ow-key", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "ow-key", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "ow-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "v2" {
			t.Fatalf("Get = %q, %v after overwrite", val, found)
		}
	})
}
