// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
)

//go:embed static
var staticFiles embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// handleIndex serves the single-page client.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "client not bundled")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

// handleHighlightCSS serves the code-block stylesheet.
func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write([]byte(s.html.CSS()))
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	OllamaStatus string `json:"ollama_status"`
	Sessions     int    `json:"sessions"`
}

// handleHealth handles GET /health. A missing Ollama only degrades status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  chat.AppVersion,
		Sessions: s.sessions.len(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.backend.Version(ctx); err == nil {
		health.OllamaStatus = "ok"
	} else {
		health.OllamaStatus = "unavailable"
		health.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// MODELS / VERSION
// ============================================================================

// handleModels handles GET /api/models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.backend.ListModels(r.Context())
	if err != nil {
		s.log.Warn("listing models failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   chat.Describe(err),
			Details: err.Error(),
		})
		return
	}
	if models == nil {
		models = []ollama.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, ollama.ListModelsResponse{Models: models})
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	AppVersion    string `json:"app_version"`
	OllamaVersion string `json:"ollama_version"`
	GoVersion     string `json:"go_version"`
	OllamaAPIURL  string `json:"ollama_api_url"`
	Error         string `json:"error,omitempty"`
}

// handleVersion handles GET /api/version. It always answers 200.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{
		AppVersion:   chat.AppVersion,
		GoVersion:    runtime.Version(),
		OllamaAPIURL: s.backend.BaseURL(),
	}

	v, err := s.backend.Version(r.Context())
	if err != nil {
		resp.OllamaVersion = "unknown (could not connect)"
		resp.Error = err.Error()
	} else {
		resp.OllamaVersion = v
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// STATELESS CHAT PROXY
// ============================================================================

// ProxyRequest is the body of POST /api/chat. The browser owns history.
type ProxyRequest struct {
	Model    string           `json:"model"`
	Messages []ollama.Message `json:"messages"`
	Options  *ProxyOptions    `json:"options"`
}

// ProxyOptions are the generation options; omitted ones use server defaults.
type ProxyOptions struct {
	Temperature *float64 `json:"temperature"`
	NumPredict  *int     `json:"num_predict"`
}

var validRoles = map[string]bool{
	string(chat.RoleSystem):    true,
	string(chat.RoleUser):      true,
	string(chat.RoleAssistant): true,
}

// handleChat handles POST /api/chat: validate, forward with stream=false,
// and return the service's reply with message.content_html added.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ProxyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Model = strings.TrimSpace(req.Model)
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if req.Messages == nil {
		writeError(w, http.StatusBadRequest, "messages must be an array")
		return
	}
	for i, m := range req.Messages {
		if !validRoles[m.Role] {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid message role",
				Details: fmt.Sprintf("message %d has role %q", i, m.Role),
			})
			return
		}
	}

	defaults := s.Defaults()
	opts := &ollama.Options{Temperature: defaults.Temperature, NumPredict: defaults.MaxTokens}
	if req.Options != nil {
		if t := req.Options.Temperature; t != nil {
			if err := chat.ValidateTemperature(*t); err != nil {
				writeErr(w, err)
				return
			}
			opts.Temperature = *t
		}
		if n := req.Options.NumPredict; n != nil {
			if err := chat.ValidateMaxTokens(*n); err != nil {
				writeErr(w, err)
				return
			}
			opts.NumPredict = *n
		}
	}

	start := time.Now()
	raw, err := s.backend.Chat(r.Context(), ollama.ChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		s.metrics.ObserveCompletion(outcomeFor(err), time.Since(start))
		s.log.Warn("proxy chat failed", zap.String("model", req.Model), zap.Error(err))
		writeJSON(w, statusFor(err), ErrorResponse{Error: chat.Describe(err), Details: err.Error()})
		return
	}

	var reply map[string]interface{}
	if err := json.Unmarshal(raw, &reply); err != nil {
		s.metrics.ObserveCompletion(outcomeFor(chat.ErrMalformedResponse), time.Since(start))
		writeError(w, http.StatusBadGateway, chat.Describe(chat.ErrMalformedResponse))
		return
	}
	if msg, ok := reply["message"].(map[string]interface{}); ok {
		if content, ok := msg["content"].(string); ok {
			msg["content_html"] = s.renderHTML(content)
		}
	}
	s.metrics.ObserveCompletion("ok", time.Since(start))
	writeJSON(w, http.StatusOK, reply)
}
