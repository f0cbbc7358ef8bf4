// Package mcp exposes Drawbridge over the Model Context Protocol so AI
// agents can generate and manage diagrams as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/drawbridge-ai/drawbridge/internal/adapter/fifo"
	"github.com/drawbridge-ai/drawbridge/internal/registry"
	"github.com/drawbridge-ai/drawbridge/internal/service"
)

// DiagramService is the slice of the generation service the MCP surface
// needs. Satisfied by *service.GenerationService.
type DiagramService interface {
	Generate(ctx context.Context, prompt, nameHint string) (service.Result, error)
	ResolveArtifact(id string) (registry.Artifact, string, error)
	DeleteArtifact(id string) error
	CacheStats() fifo.Stats
	RunCleanup() int
}

var _ DiagramService = (*service.GenerationService)(nil)

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps holds the collaborators tools and resources are built on.
// A nil Service turns every tool into a configuration error result.
type ServerDeps struct {
	Service DiagramService
}

// Server wraps an mcp-go server with streamable HTTP transport.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying mcp-go server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves the MCP protocol over streamable HTTP in the background.
func (s *Server) Start() error {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpServer = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: AuthMiddleware(s.cfg.APIKey, streamable),
	}

	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the MCP transport down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// toolResultJSON wraps a JSON payload as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
