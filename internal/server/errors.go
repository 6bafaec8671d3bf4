// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// errSessionNotFound is returned for unknown session ids.
var errSessionNotFound = errors.New("session not found")

// errLibraryDisabled is returned by library routes when no store is configured.
var errLibraryDisabled = errors.New("chat library is not configured")

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var he *ollama.HTTPError
	var te *ollama.TransportError

	switch {
	case errors.Is(err, chat.ErrEmptyInput),
		errors.Is(err, chat.ErrInvalidTemperature),
		errors.Is(err, chat.ErrInvalidMaxTokens),
		errors.Is(err, chat.ErrInvalidChatFile),
		errors.Is(err, storage.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrNoModelSelected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrAlreadyGenerating):
		return http.StatusConflict
	case errors.Is(err, errSessionNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errLibraryDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrEmptyModelResponse),
		errors.Is(err, chat.ErrMalformedResponse),
		errors.As(err, &he),
		errors.As(err, &te):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// outcomeFor labels a completion result for metrics.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, chat.ErrEmptyModelResponse):
		return "empty_response"
	case errors.Is(err, chat.ErrMalformedResponse):
		return "malformed_response"
	case ollama.IsTimeout(err):
		return "timeout"
	case ollama.IsModelNotFound(err):
		return "model_not_found"
	case ollama.StatusCode(err) != 0:
		return "http_error"
	case ollama.IsNotRunning(err):
		return "unreachable"
	}
	return "error"
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeErr maps err to a status and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// decodeJSON reads a JSON body into v. Oversized bodies are reported as 413.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Details: err.Error()})
		return false
	}
	return true
}
