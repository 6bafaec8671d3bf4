// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

// =============================================================================
// TEST SERVER
// =============================================================================

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/api")
}

// =============================================================================
// CLIENT CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(nil)
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), DefaultBaseURL)
	}

	c = NewClient("http://example.test:11434/api/")
	if c.BaseURL() != "http://example.test:11434/api" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.BaseURL())
	}
}

// =============================================================================
// LIST MODELS TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			t.Errorf("request = %s %s, want GET /api/tags", r.Method, r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"llama3:8b","size":4700000000},{"name":"mistral:7b"}]}`)
	})

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].Name != "llama3:8b" {
		t.Errorf("models[0].Name = %q, want %q", models[0].Name, "llama3:8b")
	}
	if got := models[0].FormatSize(); got != "4.4 GB" {
		t.Errorf("FormatSize() = %q, want %q", got, "4.4 GB")
	}
}

func TestListModels_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url + "/api").ListModels(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !IsNotRunning(err) {
		t.Error("IsNotRunning should be true for a refused connection")
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat_SendsWireShape(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"message":{"role":"assistant","content":"Hi!"},"done":true}`)
	})

	body, err := c.Chat(context.Background(), ChatRequest{
		Model:    "llama3:8b",
		Messages: []Message{{Role: "user", Content: "hello"}},
		Stream:   true,
		Options:  &Options{Temperature: 0, NumPredict: 256},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !strings.Contains(string(body), `"Hi!"`) {
		t.Errorf("body = %s, want raw reply", body)
	}

	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	opts, _ := got["options"].(map[string]any)
	if _, ok := opts["temperature"]; !ok {
		t.Error("options.temperature missing; zero must still be sent")
	}
	if opts["num_predict"] != float64(256) {
		t.Errorf("options.num_predict = %v, want 256", opts["num_predict"])
	}
}

func TestChat_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		wantStr string
	}{
		{"service error field", 404, `{"error":"model 'x' not found"}`, "model 'x' not found", "404 - model 'x' not found"},
		{"empty body", 500, ``, "", "API returned 500 Internal Server Error"},
		{"plain text", 502, `bad gateway`, "bad gateway", "502 - bad gateway"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})

			_, err := c.Chat(context.Background(), ChatRequest{Model: "x"})
			var he *HTTPError
			if !errors.As(err, &he) {
				t.Fatalf("error = %v, want *HTTPError", err)
			}
			if he.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", he.StatusCode, tc.status)
			}
			if he.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", he.Message, tc.wantMsg)
			}
			if he.Error() != tc.wantStr {
				t.Errorf("Error() = %q, want %q", he.Error(), tc.wantStr)
			}
		})
	}
}

func TestChat_HTTPErrorLongBodyIsRuneSafe(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, strings.Repeat("é", 300))
	})

	_, err := c.Chat(context.Background(), ChatRequest{Model: "x"})
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("error = %v, want *HTTPError", err)
	}
	if !utf8.ValidString(he.Message) {
		t.Errorf("Message is not valid UTF-8: %q", he.Message)
	}
	if !strings.HasSuffix(he.Message, "...") || len([]rune(he.Message)) > 120 {
		t.Errorf("Message = %q, want at most 120 runes ending in ...", he.Message)
	}
}

func TestChat_InvalidJSON(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>proxy</html>`)
	})

	_, err := c.Chat(context.Background(), ChatRequest{Model: "x"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if !te.Decode() {
		t.Error("Decode() = false, want true for a non-JSON body")
	}
	if IsNotRunning(err) {
		t.Error("a decode failure is not a connection failure")
	}
}

func TestChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, ChatRequest{Model: "x"})
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false, want true", err)
	}
}

func TestTokensPerSecond(t *testing.T) {
	var resp ChatResponse
	body := `{"model":"m","message":{"role":"assistant","content":"ok"},"eval_count":10,"eval_duration":1000000000}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.TokensPerSecond() != 10 {
		t.Errorf("TokensPerSecond() = %v, want 10", resp.TokensPerSecond())
	}
	if (&ChatResponse{}).TokensPerSecond() != 0 {
		t.Error("TokensPerSecond() without duration should be 0")
	}
}

// =============================================================================
// VERSION TESTS
// =============================================================================

func TestVersion(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"version":"0.5.7"}`)
	})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "0.5.7" {
		t.Errorf("Version() = %q, want 0.5.7", v)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(&HTTPError{StatusCode: 404}); got != 404 {
		t.Errorf("StatusCode = %d, want 404", got)
	}
	if got := StatusCode(errors.New("x")); got != 0 {
		t.Errorf("StatusCode = %d, want 0", got)
	}
	if !IsModelNotFound(&HTTPError{StatusCode: 404}) {
		t.Error("IsModelNotFound should be true for 404")
	}
}
