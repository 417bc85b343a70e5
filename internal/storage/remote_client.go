// ABOUTME: HTTP client for delivering XP pulses to the Code::Stats API.
// ABOUTME: Classifies transport errors and non-2xx responses as delivery failures.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/2389-research/codestats-ls/internal/models"
	"github.com/2389-research/codestats-ls/internal/version"
)

// PulsesPath is the API path pulses are posted to.
const PulsesPath = "/api/my/pulses"

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 10 * time.Second

// RemoteClient posts pulses to the Code::Stats API. It is safe for concurrent use.
type RemoteClient struct {
	pulsesURL string
	apiToken  string
	client    *http.Client

	mu            sync.RWMutex
	clientName    string
	clientVersion string
}

// RemoteClientOption configures optional RemoteClient settings.
type RemoteClientOption func(*RemoteClient)

// WithTimeout overrides the per-attempt timeout.
func WithTimeout(d time.Duration) RemoteClientOption {
	return func(r *RemoteClient) {
		r.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) RemoteClientOption {
	return func(r *RemoteClient) {
		r.client = c
	}
}

// NewRemoteClient creates a remote client for the API at apiURL.
// The path of apiURL is replaced with PulsesPath.
func NewRemoteClient(apiURL, apiToken string, opts ...RemoteClientOption) (*RemoteClient, error) {
	u, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: missing scheme or host", apiURL)
	}
	u.Path = PulsesPath
	u.RawPath = ""

	r := &RemoteClient{
		pulsesURL: u.String(),
		apiToken:  apiToken,
		client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: newTransport(),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// newTransport builds an HTTP transport that negotiates HTTP/2 with TLS endpoints.
func newTransport() *http.Transport {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		transport.ForceAttemptHTTP2 = true
	}
	return transport
}

// URL returns the full pulses endpoint URL.
func (r *RemoteClient) URL() string {
	return r.pulsesURL
}

// SetClientInfo records the editor that launched the server, for the User-Agent header.
func (r *RemoteClient) SetClientInfo(name, clientVersion string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clientName = name
	r.clientVersion = clientVersion
}

// UserAgent returns "codestats-ls/<version>", followed by the editor name and version when known.
func (r *RemoteClient) UserAgent() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ua := version.Name + "/" + version.Version
	if r.clientName == "" {
		return ua
	}
	ua += " (" + r.clientName
	if r.clientVersion != "" {
		ua += " " + r.clientVersion
	}
	return ua + ")"
}

// SendPulse posts a pulse. Any transport error or non-2xx response is returned as an error.
func (r *RemoteClient) SendPulse(ctx context.Context, pulse *models.Pulse) error {
	body, err := json.Marshal(pulse)
	if err != nil {
		return fmt.Errorf("failed to marshal pulse: %w", err)
	}

	if r.client.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.client.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.pulsesURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.UserAgent())
	req.Header.Set("X-API-Token", r.apiToken)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("remote API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
