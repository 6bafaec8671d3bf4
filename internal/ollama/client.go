// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/util"
)

// DefaultBaseURL is used when no base URL is configured.
// Uses the explicit IPv4 loopback to avoid IPv6 resolution issues.
const DefaultBaseURL = "http://127.0.0.1:11434/api"

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the API root including the /api path segment.
	BaseURL string

	// Timeout bounds a whole request. Zero leaves requests unbounded and
	// relies on the caller's context.
	Timeout time.Duration

	// HTTPClient overrides the underlying client (tests).
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{BaseURL: DefaultBaseURL}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL with no request timeout.
func NewClient(baseURL string) *Client {
	return NewClientWithConfig(&ClientConfig{BaseURL: baseURL})
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	base := strings.TrimRight(config.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}

	return &Client{baseURL: base, httpClient: hc}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// Version returns the service's version string from {base}/version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out VersionResponse
	if err := c.getJSON(ctx, "/version", &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all locally available models from {base}/tags.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out ListModelsResponse
	if err := c.getJSON(ctx, "/tags", &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat posts one non-streaming completion request to {base}/chat and
// returns the raw response body. The body is guaranteed to be valid JSON;
// interpreting its shape is left to the caller.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (json.RawMessage, error) {
	req.Stream = false

	resp, err := c.postJSON(ctx, "/chat", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}

	url := c.baseURL + "/chat"
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: url, Cause: err}
	}
	if !json.Valid(body) {
		return nil, &TransportError{Op: "POST", URL: url, Cause: &InvalidJSONError{Snippet: snippet(body)}}
	}
	return json.RawMessage(body), nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{Op: "GET", URL: url, Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "GET", URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: "GET", URL: url, Cause: err}
	}
	return nil
}

// postJSON sends body as JSON and returns the open response. The caller
// closes the body.
func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	url := c.baseURL + path
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: url, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: url, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "POST", URL: url, Cause: err}
	}
	return resp, nil
}

// readHTTPError builds an HTTPError, preferring the service's "error" field.
func readHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	he := &HTTPError{StatusCode: resp.StatusCode}

	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		he.Message = body.Error
	} else if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") {
		he.Message = snippet(raw)
	}
	return he
}

// snippet trims an error body to one short, rune-safe excerpt.
func snippet(b []byte) string {
	return util.TruncateWidth(strings.TrimSpace(string(b)), 120)
}
