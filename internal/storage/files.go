// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// fileRecord is the on-disk shape: a regular chat file plus library
// bookkeeping, so the file still opens with /load.
type fileRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	chat.File
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one JSON chat file per record.
type FileStore struct {
	// BaseDir is the directory for storing chats.
	BaseDir string

	// MaxChats limits stored chats (0 = unlimited). The least recently
	// updated chats are removed first.
	MaxChats int

	mu sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{BaseDir: dir}, nil
}

// Save persists r and returns its ID.
func (s *FileStore) Save(ctx context.Context, r *Record) (string, error) {
	if r.ID != "" {
		if err := validateID(r.ID); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamp(r)
	if err := s.write(r); err != nil {
		return "", err
	}

	if s.MaxChats > 0 {
		s.enforceLimit()
	}
	return r.ID, nil
}

func (s *FileStore) write(r *Record) error {
	data, err := json.MarshalIndent(fileRecord{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		File:      r.File(),
	}, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.filePath(r.ID), data, 0o600)
}

// enforceLimit removes the oldest chats if over the limit.
func (s *FileStore) enforceLimit() {
	metas, err := s.list()
	if err != nil || len(metas) <= s.MaxChats {
		return
	}
	for _, m := range metas[s.MaxChats:] {
		os.Remove(s.filePath(m.ID))
	}
}

// Load retrieves a chat by ID.
func (s *FileStore) Load(ctx context.Context, id string) (*Record, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *FileStore) load(id string) (*Record, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	f, err := chat.ParseFile(data)
	if err != nil {
		return nil, err
	}
	var book struct {
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	json.Unmarshal(data, &book)

	r := &Record{
		ID:           id,
		Title:        f.Title,
		Model:        f.Model,
		SystemPrompt: f.SystemPrompt,
		Temperature:  chat.DefaultTemperature,
		MaxTokens:    chat.DefaultMaxTokens,
		Messages:     f.Messages,
		CreatedAt:    book.CreatedAt,
		UpdatedAt:    book.UpdatedAt,
	}
	if f.Temperature != nil {
		r.Temperature = *f.Temperature
	}
	if f.MaxTokens != nil {
		r.MaxTokens = *f.MaxTokens
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Time(f.Timestamp)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}
	return r, nil
}

// List returns all saved chats (most recent first). Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context) ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *FileStore) list() ([]Meta, error) {
	records, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	metas := make([]Meta, 0, len(records))
	for _, r := range records {
		metas = append(metas, r.Meta())
	}
	return metas, nil
}

func (s *FileStore) loadAll() ([]*Record, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if validateID(id) != nil {
			continue
		}
		r, err := s.load(id)
		if err != nil {
			continue
		}
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// Search finds chats whose title or messages contain query.
func (s *FileStore) Search(ctx context.Context, query string) ([]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, r := range records {
		m := r.Meta()
		if query == "" || matches(m, r.Messages, query) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Rename changes a chat's title.
func (s *FileStore) Rename(ctx context.Context, id, title string) error {
	if err := validateID(id); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.load(id)
	if err != nil {
		return err
	}
	r.Title = title
	r.UpdatedAt = time.Now()
	return s.write(r)
}

// Delete removes a chat by ID.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Close is a no-op for the files backend.
func (s *FileStore) Close() error {
	return nil
}

// filePath returns the file path for a chat ID.
func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
