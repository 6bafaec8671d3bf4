// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/ollama-chat/internal/chat"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chats (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	temperature   REAL NOT NULL,
	max_tokens    INTEGER NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	chat_id TEXT NOT NULL,
	seq     INTEGER NOT NULL,
	role    TEXT NOT NULL,
	content TEXT NOT NULL,
	PRIMARY KEY (chat_id, seq),
	FOREIGN KEY (chat_id) REFERENCES chats(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at DESC);
`

type chatRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Model        string    `db:"model"`
	SystemPrompt string    `db:"system_prompt"`
	Temperature  float64   `db:"temperature"`
	MaxTokens    int       `db:"max_tokens"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	MessageCount int       `db:"message_count"`
	Preview      string    `db:"preview"`
}

type messageRow struct {
	Role    string `db:"role"`
	Content string `db:"content"`
}

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps saved chats in an embedded SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open chat database: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save inserts or replaces r inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, r *Record) (string, error) {
	if r.ID != "" {
		if err := validateID(r.ID); err != nil {
			return "", err
		}
	}
	stamp(r)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, title, model, system_prompt, temperature, max_tokens, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			model = excluded.model,
			system_prompt = excluded.system_prompt,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			updated_at = excluded.updated_at`,
		r.ID, r.Title, r.Model, r.SystemPrompt, r.Temperature, r.MaxTokens, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to upsert chat %s: %w", r.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, r.ID); err != nil {
		return "", fmt.Errorf("failed to reset messages for %s: %w", r.ID, err)
	}
	for i, m := range r.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (chat_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			r.ID, i, string(m.Role), m.Content); err != nil {
			return "", fmt.Errorf("failed to insert message %d of %s: %w", i, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

// Load retrieves a chat by ID.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	var row chatRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, title, model, system_prompt, temperature, max_tokens, created_at, updated_at
		FROM chats WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", id, err)
	}

	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT role, content FROM messages WHERE chat_id = ? ORDER BY seq ASC`, id); err != nil {
		return nil, fmt.Errorf("failed to get messages for %s: %w", id, err)
	}

	msgs := make([]chat.Message, 0, len(rows))
	for _, mr := range rows {
		role, err := chat.ParseRole(mr.Role)
		if err != nil {
			return nil, fmt.Errorf("chat %s: %w", id, err)
		}
		msgs = append(msgs, chat.Message{Role: role, Content: mr.Content})
	}

	return &Record{
		ID:           row.ID,
		Title:        row.Title,
		Model:        row.Model,
		SystemPrompt: row.SystemPrompt,
		Temperature:  row.Temperature,
		MaxTokens:    row.MaxTokens,
		Messages:     msgs,
		CreatedAt:    row.CreatedAt.Local(),
		UpdatedAt:    row.UpdatedAt.Local(),
	}, nil
}

const listQuery = `
	SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id) AS message_count,
		COALESCE((SELECT m.content FROM messages m
			WHERE m.chat_id = c.id AND m.role = 'user' ORDER BY m.seq LIMIT 1), '') AS preview
	FROM chats c`

// List returns all saved chats (most recent first).
func (s *SQLiteStore) List(ctx context.Context) ([]Meta, error) {
	return s.query(ctx, listQuery+` ORDER BY c.updated_at DESC`)
}

// Search finds chats whose title or messages contain query.
func (s *SQLiteStore) Search(ctx context.Context, query string) ([]Meta, error) {
	if query == "" {
		return s.List(ctx)
	}
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	return s.query(ctx, listQuery+`
		WHERE LOWER(c.title) LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM messages m WHERE m.chat_id = c.id AND LOWER(m.content) LIKE ? ESCAPE '\')
		ORDER BY c.updated_at DESC`, like, like)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Meta, error) {
	var rows []chatRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	metas := make([]Meta, 0, len(rows))
	for _, r := range rows {
		metas = append(metas, Meta{
			ID:           r.ID,
			Title:        r.Title,
			Model:        r.Model,
			CreatedAt:    r.CreatedAt.Local(),
			UpdatedAt:    r.UpdatedAt.Local(),
			MessageCount: r.MessageCount,
			Preview:      preview([]chat.Message{{Role: chat.RoleUser, Content: r.Preview}}),
		})
	}
	return metas, nil
}

// Rename changes a chat's title.
func (s *SQLiteStore) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is empty")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`, title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename chat %s: %w", id, err)
	}
	return requireRow(res)
}

// Delete removes a chat and its messages.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}
	return requireRow(res)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
