// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/export"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// ============================================================================
// SESSION REGISTRY
// ============================================================================

// entry guards one session. The lock is held for state changes only and
// released while the model is working; the session's generating flag keeps
// a second send out in the meantime.
type entry struct {
	mu       sync.Mutex
	sess     *chat.Session
	savedID  string
	lastUsed time.Time
}

type registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) add(sess *chat.Session, savedID string) *entry {
	e := &entry{sess: sess, savedID: savedID, lastUsed: time.Now()}
	r.mu.Lock()
	r.entries[sess.ID] = e
	r.mu.Unlock()
	return e
}

func (r *registry) get(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return e, nil
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *registry) all() []*entry {
	r.mu.RLock()
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// expire drops idle sessions last used before cutoff. Sessions waiting on
// the model are kept.
func (r *registry) expire(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		e.mu.Lock()
		stale := e.lastUsed.Before(cutoff) && !e.sess.IsGenerating()
		e.mu.Unlock()
		if stale {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// ============================================================================
// VIEWS
// ============================================================================

// MessageView is one history entry as sent to the browser.
type MessageView struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentHTML string `json:"content_html,omitempty"`
}

// ConfigView mirrors chat.GenerationConfig on the wire.
type ConfigView struct {
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	SystemPrompt string  `json:"system_prompt"`
}

// SessionView is the full state of a session.
type SessionView struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	CreatedAt  time.Time     `json:"created_at"`
	Config     ConfigView    `json:"config"`
	Messages   []MessageView `json:"messages"`
	Generating bool          `json:"generating"`
	Notice     string        `json:"notice,omitempty"`
	SavedID    string        `json:"saved_id,omitempty"`
}

// SessionSummary is a session list row.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	Generating   bool      `json:"generating"`
}

func configView(c chat.GenerationConfig) ConfigView {
	return ConfigView{
		Model:        c.Model,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		SystemPrompt: c.SystemPrompt,
	}
}

// view renders e; the caller holds e.mu.
func (s *Server) view(e *entry) SessionView {
	history := e.sess.History()
	msgs := make([]MessageView, 0, len(history))
	for _, m := range history {
		mv := MessageView{Role: string(m.Role), Content: m.Content}
		if m.Role == chat.RoleAssistant {
			mv.ContentHTML = s.renderHTML(m.Content)
		}
		msgs = append(msgs, mv)
	}
	return SessionView{
		ID:         e.sess.ID,
		Title:      e.sess.Title,
		CreatedAt:  e.sess.CreatedAt,
		Config:     configView(e.sess.Config()),
		Messages:   msgs,
		Generating: e.sess.IsGenerating(),
		Notice:     e.sess.Notice(),
		SavedID:    e.savedID,
	}
}

func (s *Server) renderHTML(md string) string {
	out, err := s.html.Render(md)
	if err != nil {
		s.log.Warn("markdown render failed", zap.Error(err))
		return ""
	}
	return out
}

// lookup finds the session named by the {id} URL parameter and writes 404
// when it is missing.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*entry, bool) {
	e, err := s.sessions.get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return e, true
}

func (s *Server) register(sess *chat.Session, savedID string) *entry {
	e := s.sessions.add(sess, savedID)
	s.metrics.sessions.Set(float64(s.sessions.len()))
	return e
}

// ============================================================================
// SESSION HANDLERS
// ============================================================================

// ConfigPatch is a partial update; nil fields are left unchanged.
type ConfigPatch struct {
	Model        *string  `json:"model"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    *int     `json:"max_tokens"`
	SystemPrompt *string  `json:"system_prompt"`
}

// apply validates every field before changing any.
func (p ConfigPatch) apply(cfg chat.GenerationConfig) (chat.GenerationConfig, error) {
	if p.Model != nil {
		cfg.Model = strings.TrimSpace(*p.Model)
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		cfg.MaxTokens = *p.MaxTokens
	}
	if p.SystemPrompt != nil {
		cfg.SystemPrompt = strings.TrimSpace(*p.SystemPrompt)
	}
	return cfg, cfg.Validate()
}

// handleCreateSession handles POST /api/sessions. The body is optional.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var patch ConfigPatch
	if r.ContentLength != 0 {
		if err := readOptionalJSON(r, &patch); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body", Details: err.Error()})
			return
		}
	}

	cfg, err := patch.apply(s.Defaults())
	if err != nil {
		writeErr(w, err)
		return
	}

	e := s.register(chat.NewSession(cfg), "")
	e.mu.Lock()
	v := s.view(e)
	e.mu.Unlock()

	s.log.Info("session created", zap.String("session", v.ID), zap.String("model", cfg.Model))
	writeJSON(w, http.StatusCreated, v)
}

// handleListSessions handles GET /api/sessions, newest first.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	entries := s.sessions.all()
	out := make([]SessionSummary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, SessionSummary{
			ID:           e.sess.ID,
			Title:        e.sess.Title,
			Model:        e.sess.Config().Model,
			CreatedAt:    e.sess.CreatedAt,
			MessageCount: e.sess.Len(),
			Generating:   e.sess.IsGenerating(),
		})
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

// handleGetSession handles GET /api/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	v := s.view(e)
	e.mu.Unlock()
	writeJSON(w, http.StatusOK, v)
}

// handleDeleteSession handles DELETE /api/sessions/{id}.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.remove(id) {
		writeErr(w, fmt.Errorf("%w: %s", errSessionNotFound, id))
		return
	}
	s.metrics.sessions.Set(float64(s.sessions.len()))
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionConfig handles PATCH /api/sessions/{id}/config.
func (s *Server) handleSessionConfig(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var patch ConfigPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := patch.apply(e.sess.Config())
	if err == nil {
		err = e.sess.SetConfig(cfg)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	e.lastUsed = time.Now()
	writeJSON(w, http.StatusOK, s.view(e))
}

// SendRequest is the body of POST /api/sessions/{id}/messages.
type SendRequest struct {
	Content string `json:"content"`
}

// SendResponse carries the reply plus the updated session.
type SendResponse struct {
	Reply     string      `json:"reply"`
	ReplyHTML string      `json:"reply_html"`
	Session   SessionView `json:"session"`
}

// SendErrorResponse reports a failed exchange with the session state, so
// the client can show the notice next to the unanswered question.
type SendErrorResponse struct {
	Error   string      `json:"error"`
	Session SessionView `json:"session"`
}

// handleSendMessage handles POST /api/sessions/{id}/messages: append the
// user's text, ask the model, and apply the outcome.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body SendRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	e.mu.Lock()
	e.lastUsed = time.Now()
	switch {
	case e.sess.IsGenerating():
		e.mu.Unlock()
		writeErr(w, chat.ErrAlreadyGenerating)
		return
	case e.sess.Config().Model == "":
		e.mu.Unlock()
		writeErr(w, chat.ErrNoModelSelected)
		return
	}
	if err := e.sess.AppendUserMessage(body.Content); err != nil {
		e.mu.Unlock()
		writeErr(w, err)
		return
	}
	req, err := e.sess.BuildRequest()
	e.mu.Unlock()
	if err != nil {
		writeErr(w, err)
		return
	}

	res := chat.Exchange(r.Context(), s.backend, e.sess.ID, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastUsed = time.Now()

	reply, err := e.sess.Complete(res)
	s.metrics.ObserveCompletion(outcomeFor(err), res.Elapsed)
	if err != nil {
		s.log.Warn("completion failed",
			zap.String("session", e.sess.ID),
			zap.String("model", req.Model),
			zap.Duration("took", res.Elapsed),
			zap.Error(err))
		writeJSON(w, statusFor(err), SendErrorResponse{Error: e.sess.Notice(), Session: s.view(e)})
		return
	}

	s.log.Info("completion",
		zap.String("session", e.sess.ID),
		zap.String("model", req.Model),
		zap.Int("history", e.sess.Len()),
		zap.Duration("took", res.Elapsed))
	writeJSON(w, http.StatusOK, SendResponse{
		Reply:     reply,
		ReplyHTML: s.renderHTML(reply),
		Session:   s.view(e),
	})
}

// handleClearSession handles POST /api/sessions/{id}/clear.
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Clear()
	e.lastUsed = time.Now()
	writeJSON(w, http.StatusOK, s.view(e))
}

// handleExportSession handles GET /api/sessions/{id}/export as a download.
// ?format= picks json (the chat file, default), markdown or html.
func (s *Server) handleExportSession(w http.ResponseWriter, r *http.Request) {
	exporter, err := export.ForFormat(r.URL.Query().Get("format"), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.mu.Lock()
	f := e.sess.ToFile()
	e.mu.Unlock()

	blob, err := exporter.Export(f)
	if errors.Is(err, export.ErrNoMessages) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	name := chat.DefaultFileName(time.Now())
	if _, ok := exporter.(*export.JSONExporter); !ok {
		name = export.Filename(f, exporter, time.Now())
	}
	w.Header().Set("Content-Type", exporter.MimeType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// handleImportSession handles POST /api/sessions/import with a chat file body.
func (s *Server) handleImportSession(w http.ResponseWriter, r *http.Request) {
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := chat.Deserialize(blob, s.Defaults())
	if err != nil {
		writeErr(w, err)
		return
	}

	e := s.register(sess, "")
	e.mu.Lock()
	v := s.view(e)
	e.mu.Unlock()

	s.log.Info("session imported", zap.String("session", v.ID), zap.Int("messages", len(v.Messages)))
	writeJSON(w, http.StatusCreated, v)
}

// handleSaveSession handles POST /api/sessions/{id}/save. Repeated saves
// update the same library entry.
func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeErr(w, errLibraryDisabled)
		return
	}
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}

	e.mu.Lock()
	rec := storage.FromSession(e.sess)
	rec.ID = e.savedID
	e.mu.Unlock()

	id, err := s.store.Save(r.Context(), rec)
	if err != nil {
		s.log.Error("save failed", zap.String("session", chi.URLParam(r, "id")), zap.Error(err))
		writeErr(w, err)
		return
	}

	e.mu.Lock()
	e.savedID = id
	if e.sess.Title == "" || e.sess.Title == chat.DefaultTitle {
		e.sess.Title = rec.Title
	}
	v := s.view(e)
	e.mu.Unlock()

	writeJSON(w, http.StatusOK, v)
}

// readOptionalJSON decodes a body that may legitimately be empty.
func readOptionalJSON(r *http.Request, v interface{}) error {
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(blob)) == "" {
		return nil
	}
	return json.Unmarshal(blob, v)
}
