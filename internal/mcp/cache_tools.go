// ABOUTME: MCP tool implementations for the pulse cache.
// ABOUTME: Registers list_cached_pulses, flush_cached_pulses, clear_cached_pulses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultListLimit = 50

func (s *Server) registerCacheTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "list_cached_pulses",
		Description: "List XP pulses that failed delivery to Code::Stats and are waiting in the local cache for retry.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "number", "description": "Maximum number of pulses to return (default 50)"}
			}
		}`),
	}, s.handleListCachedPulses)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "flush_cached_pulses",
		Description: "Retry delivery of every cached XP pulse now. Delivered pulses are removed from the cache.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	}, s.handleFlushCachedPulses)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "clear_cached_pulses",
		Description: "Delete every cached XP pulse without sending it. The XP they carry is lost.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"confirm": {"type": "boolean", "description": "Must be true to delete the cache"}
			},
			"required": ["confirm"]
		}`),
	}, s.handleClearCachedPulses)
}

func (s *Server) handleListCachedPulses(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Limit *float64 `json:"limit"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	limit := defaultListLimit
	if args.Limit != nil {
		if *args.Limit < 1 {
			return toolError("limit must be at least 1"), nil
		}
		limit = int(*args.Limit)
	}

	pulses, err := s.store.List(ctx)
	if err != nil {
		return toolError("failed to list cached pulses: %v", err), nil
	}
	if len(pulses) == 0 {
		return textResult("No cached pulses."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d cached pulse(s):\n", len(pulses))
	for i, p := range pulses {
		if i == limit {
			fmt.Fprintf(&sb, "... %d more\n", len(pulses)-limit)
			break
		}
		fmt.Fprintf(&sb, "- %s [%s] %s (%d XP)\n", p.CodedAt, p.ID, p.Summary(), p.TotalXP())
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleFlushCachedPulses(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	if s.flusher == nil {
		return toolError("no Code::Stats API token configured; run 'codestats-ls setup'"), nil
	}

	sent, err := s.flusher.Flush(ctx)
	if err != nil {
		return toolError("flush stopped after %d pulse(s): %v", sent, err), nil
	}

	remaining, err := s.store.Count(ctx)
	if err != nil {
		return toolError("sent %d pulse(s) but failed to count the cache: %v", sent, err), nil
	}
	return textResult(fmt.Sprintf("Sent %d cached pulse(s). %d remaining.", sent, remaining)), nil
}

func (s *Server) handleClearCachedPulses(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Confirm bool `json:"confirm"`
	}
	if err := unmarshalArgs(req, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if !args.Confirm {
		return toolError("confirm must be true to clear the cache"), nil
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return toolError("failed to count cached pulses: %v", err), nil
	}
	if err := s.store.Clear(ctx); err != nil {
		return toolError("failed to clear cached pulses: %v", err), nil
	}
	return textResult(fmt.Sprintf("Cleared %d cached pulse(s).", count)), nil
}

func unmarshalArgs(req *gomcp.CallToolRequest, v any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, v)
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
