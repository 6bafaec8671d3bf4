// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/storage"
)

// ============================================================================
// CHAT LIBRARY
// ============================================================================

// handleListChats handles GET /api/chats with an optional ?q= search.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errLibraryDisabled)
		return
	}

	metas, err := s.store.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		writeErr(w, err)
		return
	}
	if metas == nil {
		metas = []storage.Meta{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": metas})
}

// handleOpenChat handles POST /api/chats/{id}/open: load a saved chat into
// a new live session.
func (s *Server) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errLibraryDisabled)
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := s.store.Load(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}

	e := s.register(rec.Session(s.Defaults()), rec.ID)
	e.mu.Lock()
	v := s.view(e)
	e.mu.Unlock()

	s.log.Info("chat opened", zap.String("chat", id), zap.String("session", v.ID))
	writeJSON(w, http.StatusCreated, v)
}

// RenameRequest is the body of PATCH /api/chats/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// handleRenameChat handles PATCH /api/chats/{id}.
func (s *Server) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errLibraryDisabled)
		return
	}
	var body RenameRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := s.store.Rename(r.Context(), chi.URLParam(r, "id"), body.Title); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteChat handles DELETE /api/chats/{id}.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errLibraryDisabled)
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
