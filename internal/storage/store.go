// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Record is one saved chat.
type Record struct {
	ID           string
	Title        string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Messages     []chat.Message
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Meta contains what a chat list needs without the full history.
type Meta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// FromSession snapshots a session into a new record.
func FromSession(s *chat.Session) *Record {
	cfg := s.Config()
	return &Record{
		Title:        s.Title,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		Messages:     s.History(),
		CreatedAt:    s.CreatedAt,
	}
}

// File converts the record into the chat file document.
func (r *Record) File() chat.File {
	temp := r.Temperature
	tokens := r.MaxTokens
	msgs := r.Messages
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return chat.File{
		Title:        r.Title,
		Model:        r.Model,
		Timestamp:    chat.Timestamp(r.UpdatedAt),
		SystemPrompt: r.SystemPrompt,
		Messages:     msgs,
		AppVersion:   chat.AppVersion,
		Temperature:  &temp,
		MaxTokens:    &tokens,
	}
}

// Session reopens the record as a fresh session.
func (r *Record) Session(defaults chat.GenerationConfig) *chat.Session {
	return r.File().Session(defaults)
}

// Meta summarizes the record.
func (r *Record) Meta() Meta {
	return Meta{
		ID:           r.ID,
		Title:        r.Title,
		Model:        r.Model,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		MessageCount: len(r.Messages),
		Preview:      preview(r.Messages),
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store persists saved chats.
type Store interface {
	// Save inserts or replaces r and returns its ID. An empty ID is assigned.
	Save(ctx context.Context, r *Record) (string, error)
	Load(ctx context.Context, id string) (*Record, error)
	// List returns all records, most recently updated first.
	List(ctx context.Context) ([]Meta, error)
	// Search matches query against titles and message content.
	Search(ctx context.Context, query string) ([]Meta, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Backend is "files" (default) or "sqlite".
	Backend string

	// Dir holds the chat files, or the database file for sqlite.
	Dir string

	// MaxChats limits the files backend (0 = unlimited).
	MaxChats int
}

// Open builds the configured backend.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "files", "file", "json":
		fs, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, err
		}
		fs.MaxChats = opts.MaxChats
		return fs, nil
	case "sqlite", "sqlite3", "db":
		return NewSQLiteStore(filepath.Join(opts.Dir, "chats.db"))
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a saved chat doesn't exist.
var ErrNotFound = errors.New("saved chat not found")

// ErrInvalidID is returned for IDs that could escape the store directory.
var ErrInvalidID = errors.New("invalid chat id")

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func validateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// newID creates a unique chat ID.
func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "chat_" + hex.EncodeToString(b)
}

// stamp fills ID, title and timestamps before a save.
func stamp(r *Record) {
	if r.ID == "" {
		r.ID = newID()
	}
	if strings.TrimSpace(r.Title) == "" || r.Title == chat.DefaultTitle {
		r.Title = summarize(r.Messages)
	}
	r.UpdatedAt = time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}
}

// summarize titles a chat from its first user message.
func summarize(msgs []chat.Message) string {
	for _, m := range msgs {
		if m.Role == chat.RoleUser && m.Content != "" {
			return util.Preview(m.Content, 50)
		}
	}
	return chat.DefaultTitle
}

func preview(msgs []chat.Message) string {
	for _, m := range msgs {
		if m.Role == chat.RoleUser {
			return util.Preview(m.Content, 80)
		}
	}
	return ""
}

func matches(m Meta, msgs []chat.Message, query string) bool {
	query = strings.ToLower(query)
	if strings.Contains(strings.ToLower(m.Title), query) {
		return true
	}
	for _, msg := range msgs {
		if strings.Contains(strings.ToLower(msg.Content), query) {
			return true
		}
	}
	return false
}

// FormatList renders metas as a fixed-width table for terminals.
func FormatList(metas []Meta) string {
	if len(metas) == 0 {
		return "No saved chats."
	}

	var sb strings.Builder
	sb.WriteString(pad("ID", 22) + " " + pad("Updated", 16) + " " + pad("Msgs", 5) + " Title\n")
	for _, m := range metas {
		sb.WriteString(pad(m.ID, 22) + " " +
			pad(m.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			pad(fmt.Sprint(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Title, 40) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func pad(s string, width int) string {
	if w := util.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
