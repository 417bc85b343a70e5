// ABOUTME: MCP server command implementation for codestats-ls.
// ABOUTME: Starts the MCP server in stdio mode exposing the pulse cache tools.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcppkg "github.com/2389-research/codestats-ls/internal/mcp"
	"github.com/2389-research/codestats-ls/internal/pulse"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio mode)",
	Long: `Start the Model Context Protocol server for AI agent integration.

The MCP server communicates via stdio and lets agents list, flush, and
clear pulses waiting in the local cache.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var flusher mcppkg.CacheFlusher
	if globalConfig.Validate() == nil {
		client, err := newRemoteClient()
		if err != nil {
			return err
		}
		flusher = pulse.NewFlusher(client, globalStore, newCLILogger(), pulse.DefaultOptions().FlushPacing)
	}

	server, err := mcppkg.NewServer(globalStore, flusher)
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
