package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"drawbridge://cache/stats",
			"Cache Statistics",
			mcplib.WithResourceDescription("Response cache hit/miss/eviction counters"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCacheStatsResource,
	)
}

func (s *Server) handleCacheStatsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Service == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"diagram service not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Service.CacheStats())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
