package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/drawbridge-ai/drawbridge/internal/domain"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.generateDiagramTool(),
		s.resolveArtifactTool(),
		s.deleteArtifactTool(),
		s.cacheStatsTool(),
		s.runCleanupTool(),
	)
}

func (s *Server) generateDiagramTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("generate_diagram",
		mcplib.WithDescription("Generate a draw.io diagram from a natural language description"),
		mcplib.WithString("prompt",
			mcplib.Required(),
			mcplib.Description("Natural language description of the diagram to create"),
		),
		mcplib.WithString("name",
			mcplib.Description("Optional file name hint for the generated artifacts"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGenerateDiagram,
	}
}

func (s *Server) resolveArtifactTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("resolve_artifact",
		mcplib.WithDescription("Look up metadata for a generated artifact by ID"),
		mcplib.WithString("artifact_id",
			mcplib.Required(),
			mcplib.Description("The artifact ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleResolveArtifact,
	}
}

func (s *Server) deleteArtifactTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("delete_artifact",
		mcplib.WithDescription("Delete a generated artifact and its file"),
		mcplib.WithString("artifact_id",
			mcplib.Required(),
			mcplib.Description("The artifact ID to delete"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleDeleteArtifact,
	}
}

func (s *Server) cacheStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cache_stats",
		mcplib.WithDescription("Get response cache statistics"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCacheStats,
	}
}

func (s *Server) runCleanupTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_cleanup",
		mcplib.WithDescription("Run one artifact cleanup pass immediately"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRunCleanup,
	}
}

func (s *Server) handleGenerateDiagram(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Service == nil {
		return mcplib.NewToolResultError("diagram service not configured"), nil
	}
	args := req.GetArguments()
	prompt, ok := args["prompt"].(string)
	if !ok || prompt == "" {
		return mcplib.NewToolResultError("prompt is required"), nil
	}
	name, _ := args["name"].(string)

	res, err := s.deps.Service.Generate(ctx, prompt, name)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("diagram generation failed", err), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleResolveArtifact(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Service == nil {
		return mcplib.NewToolResultError("diagram service not configured"), nil
	}
	args := req.GetArguments()
	id, ok := args["artifact_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("artifact_id is required"), nil
	}

	a, path, err := s.deps.Service.ResolveArtifact(id)
	switch {
	case errors.Is(err, domain.ErrExpired):
		return mcplib.NewToolResultError(fmt.Sprintf("artifact %s has expired", id)), nil
	case errors.Is(err, domain.ErrNotFound):
		return mcplib.NewToolResultError(fmt.Sprintf("artifact %s not found", id)), nil
	case err != nil:
		return mcplib.NewToolResultErrorFromErr("failed to resolve artifact", err), nil
	}

	data, err := json.Marshal(map[string]any{
		"artifact": a,
		"path":     path,
	})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal artifact", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleDeleteArtifact(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Service == nil {
		return mcplib.NewToolResultError("diagram service not configured"), nil
	}
	args := req.GetArguments()
	id, ok := args["artifact_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("artifact_id is required"), nil
	}
	if err := s.deps.Service.DeleteArtifact(id); err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to delete artifact %s", id), err), nil
	}
	return toolResultJSON(`{"status":"deleted"}`), nil
}

func (s *Server) handleCacheStats(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Service == nil {
		return mcplib.NewToolResultError("diagram service not configured"), nil
	}
	data, err := json.Marshal(s.deps.Service.CacheStats())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal cache stats", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleRunCleanup(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Service == nil {
		return mcplib.NewToolResultError("diagram service not configured"), nil
	}
	removed := s.deps.Service.RunCleanup()
	return toolResultJSON(fmt.Sprintf(`{"removed":%d}`, removed)), nil
}
