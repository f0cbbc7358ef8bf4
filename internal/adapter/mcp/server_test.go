package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/drawbridge-ai/drawbridge/internal/adapter/fifo"
	dbmcp "github.com/drawbridge-ai/drawbridge/internal/adapter/mcp"
	"github.com/drawbridge-ai/drawbridge/internal/domain"
	"github.com/drawbridge-ai/drawbridge/internal/registry"
	"github.com/drawbridge-ai/drawbridge/internal/service"
)

// --- Mocks ---

type mockService struct {
	result    service.Result
	genErr    error
	artifacts map[string]registry.Artifact
	deleted   []string
	cleanups  int
}

func (m *mockService) Generate(_ context.Context, _, _ string) (service.Result, error) {
	if m.genErr != nil {
		return service.Result{}, m.genErr
	}
	return m.result, nil
}

func (m *mockService) ResolveArtifact(id string) (registry.Artifact, string, error) {
	a, ok := m.artifacts[id]
	if !ok {
		return registry.Artifact{}, "", domain.ErrNotFound
	}
	return a, "/tmp/" + id, nil
}

func (m *mockService) DeleteArtifact(id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockService) CacheStats() fifo.Stats {
	return fifo.Stats{Entries: 3, Hits: 7, Misses: 2}
}

func (m *mockService) RunCleanup() int {
	m.cleanups++
	return 5
}

// --- Tests ---

func TestNewServer(t *testing.T) {
	cfg := dbmcp.ServerConfig{
		Addr:    ":3001",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := dbmcp.NewServer(cfg, dbmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestServerStartStop(t *testing.T) {
	cfg := dbmcp.ServerConfig{
		Addr:    ":0",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := dbmcp.NewServer(cfg, dbmcp.ServerDeps{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestToolRegistration(t *testing.T) {
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: &mockService{}})

	tools := s.MCPServer().ListTools()
	if len(tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools))
	}

	expectedTools := map[string]bool{
		"generate_diagram": false,
		"resolve_artifact": false,
		"delete_artifact":  false,
		"cache_stats":      false,
		"run_cleanup":      false,
	}
	for name := range tools {
		if _, ok := expectedTools[name]; ok {
			expectedTools[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func callTool(t *testing.T, s *dbmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("%s tool not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func TestHandleGenerateDiagram(t *testing.T) {
	svc := &mockService{
		result: service.Result{SourceID: "src-1", ImageID: "img-1", Content: "<mxfile/>"},
	}
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: svc})

	result := callTool(t, s, "generate_diagram", map[string]any{"prompt": "draw something"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	var res service.Result
	if err := json.Unmarshal([]byte(text.Text), &res); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if res.SourceID != "src-1" || res.ImageID != "img-1" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestHandleGenerateDiagramRequiresPrompt(t *testing.T) {
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: &mockService{}})

	result := callTool(t, s, "generate_diagram", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result for missing prompt")
	}
}

func TestHandleResolveArtifactNotFound(t *testing.T) {
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: &mockService{artifacts: map[string]registry.Artifact{}}})

	result := callTool(t, s, "resolve_artifact", map[string]any{"artifact_id": "missing"})
	if !result.IsError {
		t.Fatal("expected error result for unknown artifact")
	}
}

func TestHandleDeleteArtifact(t *testing.T) {
	svc := &mockService{}
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: svc})

	result := callTool(t, s, "delete_artifact", map[string]any{"artifact_id": "a1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "a1" {
		t.Errorf("deleted = %v", svc.deleted)
	}
}

func TestHandleCacheStats(t *testing.T) {
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"},
		dbmcp.ServerDeps{Service: &mockService{}})

	result := callTool(t, s, "cache_stats", nil)
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	text := result.Content[0].(mcplib.TextContent)
	var stats fifo.Stats
	if err := json.Unmarshal([]byte(text.Text), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Hits != 7 {
		t.Errorf("hits = %d, want 7", stats.Hits)
	}
}

func TestToolsWithoutService(t *testing.T) {
	s := dbmcp.NewServer(dbmcp.ServerConfig{Name: "test", Version: "0.1.0"}, dbmcp.ServerDeps{})

	for name, args := range map[string]map[string]any{
		"generate_diagram": {"prompt": "x"},
		"resolve_artifact": {"artifact_id": "x"},
		"delete_artifact":  {"artifact_id": "x"},
		"cache_stats":      nil,
		"run_cleanup":      nil,
	} {
		if result := callTool(t, s, name, args); !result.IsError {
			t.Errorf("%s: expected configuration error result", name)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled without key", func(t *testing.T) {
		handler := dbmcp.AuthMiddleware("", next)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		handler := dbmcp.AuthMiddleware("secret", next)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", http.NoBody))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		handler := dbmcp.AuthMiddleware("secret", next)
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		handler := dbmcp.AuthMiddleware("secret", next)
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})
}
