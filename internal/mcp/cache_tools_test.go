// ABOUTME: Tests for cache MCP tool handlers.
// ABOUTME: Covers list_cached_pulses, flush_cached_pulses, clear_cached_pulses.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/codestats-ls/internal/models"
	"github.com/2389-research/codestats-ls/internal/storage"
)

type stubFlusher struct {
	store storage.PulseStore
	err   error
}

// Flush delivers everything by removing it from the store.
func (f *stubFlusher) Flush(ctx context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	pulses, err := f.store.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range pulses {
		if err := f.store.Remove(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(pulses), nil
}

func makeCacheServer(t *testing.T, pulses int) (*Server, *storage.PulseSQLiteStore) {
	t.Helper()
	store, err := storage.NewPulseSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPulseSQLiteStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for i := 0; i < pulses; i++ {
		p := models.NewPulse(map[string]uint32{"Go": uint32(i + 1), "Rust": 2}, time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC))
		if err := store.Save(context.Background(), p); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	server, err := NewServer(store, &stubFlusher{store: store})
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return server, store
}

func makeRequest(t *testing.T, name string, args interface{}) *gomcp.CallToolRequest {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}
	return &gomcp.CallToolRequest{
		Params: &gomcp.CallToolParamsRaw{
			Name:      name,
			Arguments: argsJSON,
		},
	}
}

func getTextContent(result *gomcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*gomcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func countPulses(t *testing.T, store storage.PulseStore) int {
	t.Helper()
	n, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	return n
}

func TestListCachedPulsesEmpty(t *testing.T) {
	s, _ := makeCacheServer(t, 0)

	result, err := s.handleListCachedPulses(context.Background(), makeRequest(t, "list_cached_pulses", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", getTextContent(result))
	}
	if getTextContent(result) != "No cached pulses." {
		t.Errorf("unexpected text %q", getTextContent(result))
	}
}

func TestListCachedPulses(t *testing.T) {
	s, _ := makeCacheServer(t, 2)

	result, _ := s.handleListCachedPulses(context.Background(), makeRequest(t, "list_cached_pulses", map[string]interface{}{}))
	text := getTextContent(result)
	if !strings.HasPrefix(text, "2 cached pulse(s):") {
		t.Errorf("expected count header, got %q", text)
	}
	for _, want := range []string{"2026-03-01T12:00:00.000000000Z", "Go=1, Rust=2", "Go=2, Rust=2", "(4 XP)"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in %q", want, text)
		}
	}
}

func TestListCachedPulsesLimit(t *testing.T) {
	s, _ := makeCacheServer(t, 3)

	result, _ := s.handleListCachedPulses(context.Background(), makeRequest(t, "list_cached_pulses", map[string]interface{}{"limit": 1}))
	text := getTextContent(result)
	if strings.Count(text, "\n- ") != 1 {
		t.Errorf("expected one listed pulse, got %q", text)
	}
	if !strings.Contains(text, "... 2 more") {
		t.Errorf("expected remainder line, got %q", text)
	}

	result, _ = s.handleListCachedPulses(context.Background(), makeRequest(t, "list_cached_pulses", map[string]interface{}{"limit": 0}))
	if !result.IsError {
		t.Error("expected error for zero limit")
	}
}

func TestFlushCachedPulses(t *testing.T) {
	s, store := makeCacheServer(t, 2)

	result, err := s.handleFlushCachedPulses(context.Background(), makeRequest(t, "flush_cached_pulses", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", getTextContent(result))
	}
	if getTextContent(result) != "Sent 2 cached pulse(s). 0 remaining." {
		t.Errorf("unexpected text %q", getTextContent(result))
	}
	if n := countPulses(t, store); n != 0 {
		t.Errorf("expected empty cache, got %d", n)
	}
}

func TestFlushCachedPulsesErrors(t *testing.T) {
	s, store := makeCacheServer(t, 1)

	s.flusher = nil
	result, _ := s.handleFlushCachedPulses(context.Background(), makeRequest(t, "flush_cached_pulses", map[string]interface{}{}))
	if !result.IsError || !strings.Contains(getTextContent(result), "setup") {
		t.Errorf("expected setup hint, got %q", getTextContent(result))
	}

	s.flusher = &stubFlusher{store: store, err: errors.New("disk on fire")}
	result, _ = s.handleFlushCachedPulses(context.Background(), makeRequest(t, "flush_cached_pulses", map[string]interface{}{}))
	if !result.IsError || !strings.Contains(getTextContent(result), "disk on fire") {
		t.Errorf("expected flush error, got %q", getTextContent(result))
	}
	if n := countPulses(t, store); n != 1 {
		t.Errorf("expected cache untouched, got %d", n)
	}
}

func TestClearCachedPulsesRequiresConfirm(t *testing.T) {
	s, store := makeCacheServer(t, 2)

	result, _ := s.handleClearCachedPulses(context.Background(), makeRequest(t, "clear_cached_pulses", map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error without confirm")
	}
	if n := countPulses(t, store); n != 2 {
		t.Errorf("expected cache untouched, got %d", n)
	}
}

func TestClearCachedPulses(t *testing.T) {
	s, store := makeCacheServer(t, 2)

	result, _ := s.handleClearCachedPulses(context.Background(), makeRequest(t, "clear_cached_pulses", map[string]interface{}{"confirm": true}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", getTextContent(result))
	}
	if getTextContent(result) != "Cleared 2 cached pulse(s)." {
		t.Errorf("unexpected text %q", getTextContent(result))
	}
	if n := countPulses(t, store); n != 0 {
		t.Errorf("expected empty cache, got %d", n)
	}
}

func TestClearCachedPulsesInvalidArgs(t *testing.T) {
	s, _ := makeCacheServer(t, 0)

	req := &gomcp.CallToolRequest{Params: &gomcp.CallToolParamsRaw{Name: "clear_cached_pulses", Arguments: json.RawMessage(`{"confirm": "yes"}`)}}
	result, _ := s.handleClearCachedPulses(context.Background(), req)
	if !result.IsError || !strings.Contains(getTextContent(result), "invalid arguments") {
		t.Errorf("expected invalid arguments error, got %q", getTextContent(result))
	}
}
