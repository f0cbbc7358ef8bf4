package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/drawbridge-ai/drawbridge/internal/adapter/fifo"
	"github.com/drawbridge-ai/drawbridge/internal/domain"
	"github.com/drawbridge-ai/drawbridge/internal/port/generator"
	"github.com/drawbridge-ai/drawbridge/internal/port/renderer"
	"github.com/drawbridge-ai/drawbridge/internal/registry"
)

const validSource = `<mxfile host="test"><diagram id="d1"><mxGraphModel><root>` +
	`<mxCell id="0"/><mxCell id="1" parent="0"/>` +
	`</root></mxGraphModel></diagram></mxfile>`

type mockGenerator struct {
	output string
	err    error
	calls  int
}

func (m *mockGenerator) Generate(_ context.Context, _ string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

type mockRenderer struct {
	available bool
	png       []byte
	err       error
	calls     int
}

func (m *mockRenderer) IsAvailable() bool { return m.available }

func (m *mockRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.png, nil
}

func newTestService(t *testing.T, gen *mockGenerator, rend *mockRenderer) *GenerationService {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg, err := registry.New(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	cache := fifo.New(10)
	cleaner := registry.NewCleaner(reg, time.Hour, 1<<20, 0.25, logger)
	return NewGenerationService(gen, rend, cache, reg, cleaner, time.Hour, time.Hour, 0.25, logger)
}

func TestGenerateFullSuccess(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	rend := &mockRenderer{available: true, png: []byte("png-data")}
	svc := newTestService(t, gen, rend)

	res, err := svc.Generate(context.Background(), "draw a login flow", "login")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.SourceID == "" || res.ImageID == "" {
		t.Errorf("expected both artifact IDs, got %+v", res)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning: %q", res.Warning)
	}
	if res.Cached {
		t.Error("first generation should not be a cache hit")
	}
	if res.Content != validSource {
		t.Errorf("content = %q", res.Content)
	}

	if _, _, err := svc.ResolveArtifact(res.SourceID); err != nil {
		t.Errorf("resolve source: %v", err)
	}
	if _, _, err := svc.ResolveArtifact(res.ImageID); err != nil {
		t.Errorf("resolve image: %v", err)
	}
}

func TestGenerateExtractsFencedOutput(t *testing.T) {
	gen := &mockGenerator{output: "Here is your diagram:\n```xml\n" + validSource + "\n```"}
	svc := newTestService(t, gen, &mockRenderer{available: false})

	res, err := svc.Generate(context.Background(), "prompt", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Content != validSource {
		t.Errorf("fence not stripped: %q", res.Content)
	}
}

func TestGenerateDegradesWhenRendererUnavailable(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	svc := newTestService(t, gen, &mockRenderer{available: false})

	res, err := svc.Generate(context.Background(), "prompt", "diag")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.SourceID == "" {
		t.Error("source artifact must be registered despite missing renderer")
	}
	if res.ImageID != "" {
		t.Error("no image ID expected without a renderer")
	}
	if res.Warning == "" {
		t.Error("expected a warning explaining the missing image")
	}
}

func TestGenerateDegradesOnRenderFailure(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	rend := &mockRenderer{
		available: true,
		err:       &renderer.Error{Kind: renderer.ConversionFailed, Message: "export failed"},
	}
	svc := newTestService(t, gen, rend)

	res, err := svc.Generate(context.Background(), "prompt", "diag")
	if err != nil {
		t.Fatalf("render failure must not fail the request: %v", err)
	}
	if res.ImageID != "" || res.Warning == "" {
		t.Errorf("expected warning and no image, got %+v", res)
	}
}

func TestGenerateRejectsInvalidContent(t *testing.T) {
	gen := &mockGenerator{output: "I cannot draw that, sorry."}
	svc := newTestService(t, gen, &mockRenderer{available: false})

	_, err := svc.Generate(context.Background(), "prompt", "")
	if err == nil {
		t.Fatal("expected error for invalid generated content")
	}
	if domain.CodeOf(err) != domain.CodeInvalidContent {
		t.Errorf("code = %v, want %v", domain.CodeOf(err), domain.CodeInvalidContent)
	}
}

func TestGenerateMapsGeneratorFailures(t *testing.T) {
	tests := []struct {
		kind generator.FailureKind
		want domain.Code
	}{
		{generator.RateLimited, domain.CodeRateLimited},
		{generator.QuotaExceeded, domain.CodeQuotaExceeded},
		{generator.Unauthenticated, domain.CodeUnauthenticated},
		{generator.Connection, domain.CodeConnection},
		{generator.Timeout, domain.CodeTimeout},
		{generator.Unknown, domain.CodeUnknown},
	}

	for _, tt := range tests {
		gen := &mockGenerator{err: &generator.Error{Kind: tt.kind, Message: "boom"}}
		svc := newTestService(t, gen, &mockRenderer{})

		_, err := svc.Generate(context.Background(), "prompt", "")
		if err == nil {
			t.Fatalf("kind %v: expected error", tt.kind)
		}
		if got := domain.CodeOf(err); got != tt.want {
			t.Errorf("kind %v: code = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestGenerateCacheHitSkipsGenerationNotRendering(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	rend := &mockRenderer{available: true, png: []byte("png")}
	svc := newTestService(t, gen, rend)

	first, err := svc.Generate(context.Background(), "draw a login flow", "")
	if err != nil {
		t.Fatal(err)
	}

	// Same prompt modulo whitespace must hit the cache.
	second, err := svc.Generate(context.Background(), "  draw   a login\tflow ", "")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Error("expected cache hit on normalized-equal prompt")
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if rend.calls != 2 {
		t.Errorf("renderer calls = %d, want 2 (cache hits still render)", rend.calls)
	}
	if second.SourceID == first.SourceID {
		t.Error("each request registers its own source artifact")
	}
	if second.Content != validSource {
		t.Errorf("cached content = %q", second.Content)
	}
}

func TestGenerateCacheHitDoesNotRefreshEntry(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	rend := &mockRenderer{available: true, png: []byte("png")}
	svc := newTestService(t, gen, rend)

	if _, err := svc.Generate(context.Background(), "draw a login flow", ""); err != nil {
		t.Fatal(err)
	}
	before := svc.CacheStats()

	res, err := svc.Generate(context.Background(), "draw a login flow", "")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Fatal("expected cache hit")
	}

	// A hit must not rewrite the entry: that would push back its TTL and
	// its place in the eviction order.
	after := svc.CacheStats()
	if after.Entries != 1 {
		t.Fatalf("entries = %d, want 1", after.Entries)
	}
	if !after.Newest.Equal(before.Newest) {
		t.Errorf("entry was replaced on cache hit: newest %v -> %v", before.Newest, after.Newest)
	}
}

func TestGenerateDoesNotCachePartialSuccess(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	svc := newTestService(t, gen, &mockRenderer{available: false})

	if _, err := svc.Generate(context.Background(), "prompt", ""); err != nil {
		t.Fatal(err)
	}
	hit, err := svc.CheckCache(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("partial success must not populate the cache")
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d", gen.calls)
	}
}

func TestResolveArtifactDistinguishesMissingFromExpired(t *testing.T) {
	svc := newTestService(t, &mockGenerator{output: validSource}, &mockRenderer{})

	if _, _, err := svc.ResolveArtifact("no-such-id"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteArtifactIdempotent(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	svc := newTestService(t, gen, &mockRenderer{available: false})

	res, err := svc.Generate(context.Background(), "prompt", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteArtifact(res.SourceID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteArtifact(res.SourceID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, _, err := svc.ResolveArtifact(res.SourceID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve after delete: %v", err)
	}
}

func TestClearCacheAndStats(t *testing.T) {
	gen := &mockGenerator{output: validSource}
	rend := &mockRenderer{available: true, png: []byte("png")}
	svc := newTestService(t, gen, rend)

	if _, err := svc.Generate(context.Background(), "prompt", ""); err != nil {
		t.Fatal(err)
	}
	if got := svc.CacheStats().Entries; got != 1 {
		t.Fatalf("entries = %d, want 1", got)
	}

	svc.ClearCache()
	if got := svc.CacheStats().Entries; got != 0 {
		t.Errorf("entries after clear = %d", got)
	}
}

func TestRunCleanup(t *testing.T) {
	svc := newTestService(t, &mockGenerator{output: validSource}, &mockRenderer{})
	if removed := svc.RunCleanup(); removed != 0 {
		t.Errorf("cleanup on empty registry removed %d", removed)
	}
}
