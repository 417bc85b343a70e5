// ABOUTME: Tests for the Code::Stats pulse client using an httptest server.
// ABOUTME: Covers request shape, auth and user-agent headers, and failure classification.
package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/codestats-ls/internal/models"
	"github.com/2389-research/codestats-ls/internal/version"
)

func TestRemoteClientSendPulse(t *testing.T) {
	var receivedBody []byte
	var receivedToken string
	var receivedContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PulsesPath {
			t.Errorf("expected path %s, got %s", PulsesPath, r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		receivedToken = r.Header.Get("X-API-Token")
		receivedContentType = r.Header.Get("Content-Type")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client, err := NewRemoteClient(server.URL, "test-token")
	if err != nil {
		t.Fatalf("NewRemoteClient error: %v", err)
	}
	pulse := models.NewPulse(map[string]uint32{"Rust": 3}, time.Now())

	if err := client.SendPulse(context.Background(), pulse); err != nil {
		t.Fatalf("SendPulse error: %v", err)
	}

	if receivedToken != "test-token" {
		t.Errorf("expected 'test-token', got %q", receivedToken)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected 'application/json', got %q", receivedContentType)
	}

	var payload struct {
		CodedAt string `json:"coded_at"`
		XPs     []struct {
			Language string `json:"language"`
			XP       uint32 `json:"xp"`
		} `json:"xps"`
	}
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if payload.CodedAt != pulse.CodedAt {
		t.Errorf("expected coded_at %q, got %q", pulse.CodedAt, payload.CodedAt)
	}
	if len(payload.XPs) != 1 || payload.XPs[0].Language != "Rust" || payload.XPs[0].XP != 3 {
		t.Errorf("unexpected xps: %+v", payload.XPs)
	}
}

func TestRemoteClientReplacesPath(t *testing.T) {
	client, err := NewRemoteClient("https://codestats.example.com/some/base/", "tok")
	if err != nil {
		t.Fatalf("NewRemoteClient error: %v", err)
	}
	if client.URL() != "https://codestats.example.com/api/my/pulses" {
		t.Errorf("unexpected URL %q", client.URL())
	}
}

func TestRemoteClientInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "codestats.net", "http://[::1"} {
		if _, err := NewRemoteClient(raw, "tok"); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestRemoteClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer server.Close()

	client, _ := NewRemoteClient(server.URL, "tok")
	err := client.SendPulse(context.Background(), models.NewPulse(map[string]uint32{"Go": 1}, time.Now()))
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "internal error") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestRemoteClientNonSuccessStatuses(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusUnauthorized, http.StatusTooManyRequests} {
		// A 301 without a Location header is returned to the caller rather than followed.
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client, _ := NewRemoteClient(server.URL, "tok")
		err := client.SendPulse(context.Background(), models.NewPulse(map[string]uint32{"Go": 1}, time.Now()))
		if err == nil {
			t.Errorf("expected error for status %d", status)
		}
		server.Close()
	}
}

func TestRemoteClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, _ := NewRemoteClient(server.URL, "tok", WithTimeout(50*time.Millisecond))

	start := time.Now()
	err := client.SendPulse(context.Background(), models.NewPulse(map[string]uint32{"Go": 1}, time.Now()))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestRemoteClientConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := NewRemoteClient(url, "tok")
	err := client.SendPulse(context.Background(), models.NewPulse(map[string]uint32{"Go": 1}, time.Now()))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
}

func TestRemoteClientUserAgent(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.Header.Get("User-Agent"))
	}))
	defer server.Close()

	client, _ := NewRemoteClient(server.URL, "tok")
	pulse := models.NewPulse(map[string]uint32{"Go": 1}, time.Now())

	_ = client.SendPulse(context.Background(), pulse)
	client.SetClientInfo("Helix", "")
	_ = client.SendPulse(context.Background(), pulse)
	client.SetClientInfo("Zed", "0.180.1")
	_ = client.SendPulse(context.Background(), pulse)

	base := version.Name + "/" + version.Version
	want := []string{base, base + " (Helix)", base + " (Zed 0.180.1)"}
	if len(received) != len(want) {
		t.Fatalf("expected %d requests, got %d", len(want), len(received))
	}
	for i := range want {
		if received[i] != want[i] {
			t.Errorf("request %d: expected User-Agent %q, got %q", i, want[i], received[i])
		}
	}
}
