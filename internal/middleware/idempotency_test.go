package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/drawbridge-ai/drawbridge/internal/middleware"
)

// memCache is an in-memory cache port implementation for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newIdempotentHandler(store *memCache) (http.Handler, *int) {
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"call":%d}`, calls)
	})
	return middleware.Idempotency(store, time.Hour, 1<<20)(inner), &calls
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	handler, calls := newIdempotentHandler(newMemCache())

	var bodies []string
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diagrams", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		bodies = append(bodies, rec.Body.String())
	}

	if *calls != 1 {
		t.Errorf("handler calls = %d, want 1", *calls)
	}
	if bodies[0] != bodies[1] {
		t.Errorf("replayed body differs: %q vs %q", bodies[0], bodies[1])
	}
}

func TestIdempotencyReplayedHeader(t *testing.T) {
	handler, _ := newIdempotentHandler(newMemCache())

	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Idempotency-Replayed") != "" {
		t.Error("first response must not be marked replayed")
	}

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.Header.Set("Idempotency-Key", "key-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get("Idempotency-Replayed") != "true" {
		t.Error("second response should be marked replayed")
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Error("replay should restore captured headers")
	}
}

func TestIdempotencyDistinctKeys(t *testing.T) {
	handler, calls := newIdempotentHandler(newMemCache())

	for _, key := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		req.Header.Set("Idempotency-Key", key)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if *calls != 2 {
		t.Errorf("handler calls = %d, want 2", *calls)
	}
}

func TestIdempotencySkipsWithoutKey(t *testing.T) {
	handler, calls := newIdempotentHandler(newMemCache())

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if *calls != 2 {
		t.Errorf("handler calls = %d, want 2", *calls)
	}
}

func TestIdempotencySkipsReadMethods(t *testing.T) {
	handler, calls := newIdempotentHandler(newMemCache())

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if *calls != 2 {
		t.Errorf("GET must bypass idempotency, calls = %d", *calls)
	}
}

func TestIdempotencySkipsOversizedBodies(t *testing.T) {
	store := newMemCache()
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write(make([]byte, 2048))
	})
	handler := middleware.Idempotency(store, time.Hour, 1024)(inner)

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		req.Header.Set("Idempotency-Key", "big")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Errorf("oversized responses must not be cached, calls = %d", calls)
	}
}
