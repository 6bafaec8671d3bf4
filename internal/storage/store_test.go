// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := Open(Options{Backend: "files", Dir: t.TempDir()})
	require.NoError(t, err)

	db, err := Open(Options{Backend: "sqlite", Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{"files": fs, "sqlite": db}
}

func sampleSession(t *testing.T) *chat.Session {
	t.Helper()
	s := chat.NewSession(chat.GenerationConfig{Model: "llama3:8b", Temperature: 0.4, MaxTokens: 300, SystemPrompt: "Be kind."})
	require.NoError(t, s.AppendUserMessage("How do tides work?"))
	_, err := s.BuildRequest()
	require.NoError(t, err)
	_, err = s.ApplyResponse([]byte(`{"message":{"content":"The moon pulls the oceans."}}`))
	require.NoError(t, err)
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			sess := sampleSession(t)

			id, err := store.Save(ctx, FromSession(sess))
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			r, err := store.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "How do tides work?", r.Title, "untitled chats take their first question as title")
			assert.Equal(t, "llama3:8b", r.Model)
			assert.Equal(t, "Be kind.", r.SystemPrompt)
			assert.Equal(t, 0.4, r.Temperature)
			assert.Equal(t, 300, r.MaxTokens)
			assert.Equal(t, sess.History(), r.Messages)

			reopened := r.Session(chat.DefaultGenerationConfig())
			assert.Equal(t, sess.History(), reopened.History())
			assert.Equal(t, sess.Config(), reopened.Config())
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := FromSession(sampleSession(t))
			id, err := store.Save(ctx, r)
			require.NoError(t, err)

			r.Messages = r.Messages[:1]
			_, err = store.Save(ctx, r)
			require.NoError(t, err)

			loaded, err := store.Load(ctx, id)
			require.NoError(t, err)
			assert.Len(t, loaded.Messages, 1)

			metas, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, metas, 1)
		})
	}
}

func TestStore_ListSearchRenameDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first := FromSession(sampleSession(t))
			first.Title = "Ocean science"
			id1, err := store.Save(ctx, first)
			require.NoError(t, err)

			time.Sleep(10 * time.Millisecond)

			s2 := chat.NewSession(chat.DefaultGenerationConfig())
			require.NoError(t, s2.AppendUserMessage("Recipe for 100% rye bread"))
			id2, err := store.Save(ctx, FromSession(s2))
			require.NoError(t, err)

			metas, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, metas, 2)
			assert.Equal(t, id2, metas[0].ID, "most recent first")
			assert.Equal(t, 2, metas[1].MessageCount)
			assert.Equal(t, "How do tides work?", metas[1].Preview)

			found, err := store.Search(ctx, "MOON")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, id1, found[0].ID)

			found, err = store.Search(ctx, "100%")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, id2, found[0].ID)

			require.NoError(t, store.Rename(ctx, id1, "Tides"))
			r, err := store.Load(ctx, id1)
			require.NoError(t, err)
			assert.Equal(t, "Tides", r.Title)

			require.NoError(t, store.Delete(ctx, id1))
			_, err = store.Load(ctx, id1)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, id1), ErrNotFound)
			assert.ErrorIs(t, store.Rename(ctx, id1, "x"), ErrNotFound)
		})
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Load(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = fs.Save(context.Background(), &Record{ID: "a/b"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestFileStore_FilesAreChatFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	sess := sampleSession(t)
	id, err := fs.Save(context.Background(), FromSession(sess))
	require.NoError(t, err)

	blob, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)

	loaded, err := chat.Deserialize(blob, chat.DefaultGenerationConfig())
	require.NoError(t, err)
	assert.Equal(t, sess.History(), loaded.History())
}

func TestFileStore_MaxChats(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	fs.MaxChats = 2

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := fs.Save(ctx, FromSession(sampleSession(t)))
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(10 * time.Millisecond)
	}

	metas, err := fs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, metas, 2)

	_, err = fs.Load(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "redis", Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "No saved chats.", FormatList(nil))

	out := FormatList([]Meta{{ID: "chat_1", Title: "Tides", MessageCount: 2, UpdatedAt: time.Now()}})
	assert.Contains(t, out, "chat_1")
	assert.Contains(t, out, "Tides")
}
