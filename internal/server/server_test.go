// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu         sync.Mutex
	models     []ollama.ModelInfo
	listErr    error
	version    string
	versionErr error
	reply      json.RawMessage
	chatErr    error
	requests   []ollama.ChatRequest

	// When started is set, Chat signals it and waits for release.
	started chan struct{}
	release chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		models:  []ollama.ModelInfo{{Name: "llama3:8b"}, {Name: "mistral:7b"}},
		version: "0.5.1",
		reply:   json.RawMessage(`{"model":"llama3:8b","message":{"role":"assistant","content":"Hello **there**"},"done":true}`),
	}
}

func (f *fakeBackend) Chat(ctx context.Context, req ollama.ChatRequest) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	started, release := f.started, f.release
	reply, err := f.reply, f.chatErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}
	return reply, err
}

func (f *fakeBackend) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return f.models, f.listErr
}

func (f *fakeBackend) Version(ctx context.Context) (string, error) {
	return f.version, f.versionErr
}

func (f *fakeBackend) BaseURL() string {
	return "http://ollama.test/api"
}

func (f *fakeBackend) lastRequest(t *testing.T) ollama.ChatRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestServer(t *testing.T, fb *fakeBackend, withStore bool) *Server {
	t.Helper()
	var store storage.Store
	if withStore {
		fs, err := storage.NewFileStore(t.TempDir())
		require.NoError(t, err)
		store = fs
	}
	return New(Options{Defaults: chat.GenerationConfig{Model: "llama3:8b", Temperature: 0.5, MaxTokens: 256}}, fb, store, nil)
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		blob, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(blob)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createSession(t *testing.T, s *Server, body interface{}) SessionView {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionView](t, rec)
}

// =============================================================================
// BASIC ENDPOINTS
// =============================================================================

func TestHealth(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)

	h := decode[HealthResponse](t, do(t, s, http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "ok", h.OllamaStatus)

	fb.versionErr = errors.New("down")
	h = decode[HealthResponse](t, do(t, s, http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "unavailable", h.OllamaStatus)
}

func TestModels(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)

	rec := do(t, s, http.MethodGet, "/api/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ollama.ListModelsResponse](t, rec)
	assert.Len(t, list.Models, 2)

	fb.listErr = &ollama.TransportError{Op: "list models", URL: "http://ollama.test/api/tags", Cause: errors.New("connection refused")}
	rec = do(t, s, http.MethodGet, "/api/models", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decode[ErrorResponse](t, rec)
	assert.NotEmpty(t, e.Error)
	assert.NotEmpty(t, e.Details)
}

func TestVersion(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)

	v := decode[VersionResponse](t, do(t, s, http.MethodGet, "/api/version", nil))
	assert.Equal(t, chat.AppVersion, v.AppVersion)
	assert.Equal(t, "0.5.1", v.OllamaVersion)
	assert.Equal(t, "http://ollama.test/api", v.OllamaAPIURL)
	assert.True(t, strings.HasPrefix(v.GoVersion, "go"))

	fb.versionErr = errors.New("refused")
	rec := do(t, s, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	v = decode[VersionResponse](t, rec)
	assert.Equal(t, "unknown (could not connect)", v.OllamaVersion)
}

func TestIndexAndAssets(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)

	rec := do(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/static/app.js")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")

	rec = do(t, s, http.MethodGet, "/static/app.js", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/static/highlight.css", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".chroma")
}

// =============================================================================
// STATELESS PROXY
// =============================================================================

func TestChatProxy(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)

	t.Run("missing model", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat", `{"messages":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing messages", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat", `{"model":"llama3:8b"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad role", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat", `{"model":"llama3:8b","messages":[{"role":"tool","content":"x"}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("out of range options", func(t *testing.T) {
		for _, opts := range []string{
			`{"temperature":1.5}`,
			`{"temperature":-0.1}`,
			`{"num_predict":0}`,
			`{"num_predict":-5}`,
		} {
			rec := do(t, s, http.MethodPost, "/api/chat",
				`{"model":"llama3:8b","messages":[{"role":"user","content":"hi"}],"options":`+opts+`}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code, opts)
		}
	})

	t.Run("forwards and renders", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/chat",
			`{"model":"llama3:8b","messages":[{"role":"user","content":"hi"}],"options":{"temperature":0.1}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			Message struct {
				Content     string `json:"content"`
				ContentHTML string `json:"content_html"`
			} `json:"message"`
			Done bool `json:"done"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Hello **there**", body.Message.Content)
		assert.Contains(t, body.Message.ContentHTML, "<strong>there</strong>")
		assert.True(t, body.Done, "service fields pass through")

		req := fb.lastRequest(t)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.1, req.Options.Temperature)
		assert.Equal(t, 256, req.Options.NumPredict, "omitted options use server defaults")
	})

	t.Run("upstream error", func(t *testing.T) {
		fb.chatErr = &ollama.HTTPError{StatusCode: 404, Message: "model 'nope' not found"}
		defer func() { fb.chatErr = nil }()

		rec := do(t, s, http.MethodPost, "/api/chat", `{"model":"nope","messages":[{"role":"user","content":"hi"}]}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "404")
	})
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSession_SendFlow(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)

	v := createSession(t, s, map[string]interface{}{"system_prompt": "Be brief."})
	assert.Equal(t, "llama3:8b", v.Config.Model)
	assert.Equal(t, "Be brief.", v.Config.SystemPrompt)

	rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "  Hi  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[SendResponse](t, rec)
	assert.Equal(t, "Hello **there**", resp.Reply)
	assert.Contains(t, resp.ReplyHTML, "<strong>")
	require.Len(t, resp.Session.Messages, 2)
	assert.Equal(t, "Hi", resp.Session.Messages[0].Content)
	assert.NotEmpty(t, resp.Session.Messages[1].ContentHTML)
	assert.False(t, resp.Session.Generating)

	req := fb.lastRequest(t)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, 0.5, req.Options.Temperature)
	assert.Equal(t, 256, req.Options.NumPredict)

	got := decode[SessionView](t, do(t, s, http.MethodGet, "/api/sessions/"+v.ID, nil))
	assert.Len(t, got.Messages, 2)
}

func TestSession_Errors(t *testing.T) {
	fb := newFakeBackend()
	s := newTestServer(t, fb, false)
	v := createSession(t, s, nil)

	t.Run("empty input", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/sessions/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = do(t, s, http.MethodPost, "/api/sessions/nope/messages", SendRequest{Content: "hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no model", func(t *testing.T) {
		nm := createSession(t, s, map[string]string{"model": ""})
		rec := do(t, s, http.MethodPost, "/api/sessions/"+nm.ID+"/messages", SendRequest{Content: "hi"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		got := decode[SessionView](t, do(t, s, http.MethodGet, "/api/sessions/"+nm.ID, nil))
		assert.Empty(t, got.Messages, "refused sends leave history alone")
	})

	t.Run("invalid config", func(t *testing.T) {
		rec := do(t, s, http.MethodPatch, "/api/sessions/"+v.ID+"/config", map[string]float64{"temperature": 1.5})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = do(t, s, http.MethodPost, "/api/sessions", map[string]int{"max_tokens": 0})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty model response", func(t *testing.T) {
		fb.reply = json.RawMessage(`{"message":{"role":"assistant","content":""}}`)
		defer func() { fb.reply = newFakeBackend().reply }()

		rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "hi"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		e := decode[SendErrorResponse](t, rec)
		assert.Equal(t, "Error: Received empty response from model.", e.Error)
		assert.False(t, e.Session.Generating)
		require.Len(t, e.Session.Messages, 1, "the question stays in history")
	})

	t.Run("upstream failure", func(t *testing.T) {
		fb.chatErr = &ollama.HTTPError{StatusCode: 500, Message: "out of memory"}
		defer func() { fb.chatErr = nil }()

		rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "again"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "Error: 500 - out of memory", decode[SendErrorResponse](t, rec).Error)
	})
}

func TestSession_AlreadyGenerating(t *testing.T) {
	fb := newFakeBackend()
	fb.started = make(chan struct{})
	fb.release = make(chan struct{})
	s := newTestServer(t, fb, false)
	v := createSession(t, s, nil)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "slow question"})
	}()
	<-fb.started

	rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "impatient"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Reads are not blocked while the model works.
	got := decode[SessionView](t, do(t, s, http.MethodGet, "/api/sessions/"+v.ID, nil))
	assert.True(t, got.Generating)
	assert.Len(t, got.Messages, 1)

	close(fb.release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
}

func TestSession_ClearExportImportDelete(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)
	v := createSession(t, s, nil)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "Hi"}).Code)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+v.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ollama_chat_")
	exported := rec.Body.String()
	f, err := chat.ParseFile([]byte(exported))
	require.NoError(t, err)
	assert.Len(t, f.Messages, 2)

	rec = do(t, s, http.MethodPost, "/api/sessions/import", exported)
	require.Equal(t, http.StatusCreated, rec.Code)
	imported := decode[SessionView](t, rec)
	assert.NotEqual(t, v.ID, imported.ID)
	assert.Len(t, imported.Messages, 2)

	rec = do(t, s, http.MethodPost, "/api/sessions/import", `{"title":"no messages"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cleared := decode[SessionView](t, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/clear", nil))
	assert.Empty(t, cleared.Messages)

	list := decode[struct {
		Sessions []SessionSummary `json:"sessions"`
	}](t, do(t, s, http.MethodGet, "/api/sessions", nil))
	assert.Len(t, list.Sessions, 2)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/sessions/"+v.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodDelete, "/api/sessions/"+v.ID, nil).Code)
}

// =============================================================================
// LIBRARY
// =============================================================================

func TestLibrary(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), true)
	v := createSession(t, s, nil)
	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "Tell me about tides"}).Code)

	saved := decode[SessionView](t, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/save", nil))
	require.NotEmpty(t, saved.SavedID)
	assert.Equal(t, "Tell me about tides", saved.Title)

	again := decode[SessionView](t, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/save", nil))
	assert.Equal(t, saved.SavedID, again.SavedID, "repeat saves update the same chat")

	type chatList struct {
		Chats []storage.Meta `json:"chats"`
	}
	list := decode[chatList](t, do(t, s, http.MethodGet, "/api/chats", nil))
	require.Len(t, list.Chats, 1)

	list = decode[chatList](t, do(t, s, http.MethodGet, "/api/chats?q=nothing-matches", nil))
	assert.Empty(t, list.Chats)

	rec := do(t, s, http.MethodPost, "/api/chats/"+saved.SavedID+"/open", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	opened := decode[SessionView](t, rec)
	assert.Len(t, opened.Messages, 2)
	assert.Equal(t, saved.SavedID, opened.SavedID)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPatch, "/api/chats/"+saved.SavedID, RenameRequest{Title: "Tides"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPatch, "/api/chats/"+saved.SavedID, RenameRequest{Title: " "}).Code)
	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/api/chats/"+saved.SavedID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/chats/"+saved.SavedID+"/open", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodDelete, "/api/chats/..%2Fetc", nil).Code)
}

func TestLibrary_Disabled(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/chats", nil).Code)

	v := createSession(t, s, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/save", nil).Code)
}

// =============================================================================
// OPS
// =============================================================================

func TestSetDefaults(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)

	require.NoError(t, s.SetDefaults(chat.GenerationConfig{Model: "mistral:7b", Temperature: 0.9, MaxTokens: 64}))
	v := createSession(t, s, nil)
	assert.Equal(t, "mistral:7b", v.Config.Model)

	assert.Error(t, s.SetDefaults(chat.GenerationConfig{Temperature: 4, MaxTokens: 64}))
	assert.Equal(t, "mistral:7b", s.Defaults().Model)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)
	do(t, s, http.MethodGet, "/api/models", nil)

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `ollama_chat_http_requests_total{code="200",method="GET",route="/api/models"}`)
	assert.Contains(t, body, "ollama_chat_sessions")
}

func TestRateLimit(t *testing.T) {
	s := New(Options{RateLimit: 1, RateBurst: 1}, newFakeBackend(), nil, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/version", nil).Code)
	rec := do(t, s, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Ops endpoints are not limited.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", nil).Code)
}

func TestBodyLimit(t *testing.T) {
	s := New(Options{MaxBodyBytes: 2048}, newFakeBackend(), nil, nil)
	big := `{"content":"` + strings.Repeat("a", 4096) + `"}`

	v := createSession(t, s, nil)
	rec := do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServe_Shutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestServer(t, newFakeBackend(), false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{}, Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := New(Options{Addr: ln.Addr().String()}, newFakeBackend(), nil, nil)
	assert.Error(t, s.Run(context.Background()))
}

func TestSession_ExportFormats(t *testing.T) {
	s := newTestServer(t, newFakeBackend(), false)
	v := createSession(t, s, nil)

	rec := do(t, s, http.MethodGet, "/api/sessions/"+v.ID+"/export?format=markdown", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty chats have nothing to read")

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/sessions/"+v.ID+"/messages", SendRequest{Content: "Hi"}).Code)

	rec = do(t, s, http.MethodGet, "/api/sessions/"+v.ID+"/export?format=markdown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".md")
	assert.Contains(t, rec.Body.String(), "### You\n\nHi")

	rec = do(t, s, http.MethodGet, "/api/sessions/"+v.ID+"/export?format=html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<!DOCTYPE html>")

	rec = do(t, s, http.MethodGet, "/api/sessions/"+v.ID+"/export?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
