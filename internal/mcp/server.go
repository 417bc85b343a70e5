// ABOUTME: MCP server initialization and configuration for codestats-ls.
// ABOUTME: Sets up the server with tools for inspecting and flushing the pulse cache.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/codestats-ls/internal/storage"
	"github.com/2389-research/codestats-ls/internal/version"
)

// CacheFlusher makes one delivery pass over the pulse cache.
type CacheFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// Server wraps the MCP server with the pulse cache.
type Server struct {
	mcp     *gomcp.Server
	store   storage.PulseStore
	flusher CacheFlusher
}

// NewServer creates an MCP server with cache capabilities. flusher may be
// nil when no API token is configured; the flush tool then reports an error.
func NewServer(store storage.PulseStore, flusher CacheFlusher) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("pulse store is required")
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		store:   store,
		flusher: flusher,
	}

	s.registerCacheTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
