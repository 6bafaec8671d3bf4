// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// =============================================================================
// MESSAGES
// =============================================================================

// GenerationDoneMsg carries a finished exchange back to the program loop.
type GenerationDoneMsg struct {
	Result chat.Result
}

// ModelsLoadedMsg carries the /tags reply.
type ModelsLoadedMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// StoredMsg reports a library save.
type StoredMsg struct {
	SessionID string
	ID        string
	Title     string
	Err       error
}

// ChatsListedMsg carries the library listing.
type ChatsListedMsg struct {
	Chats []storage.Meta
	Err   error
}

// ChatOpenedMsg carries a record loaded from the library.
type ChatOpenedMsg struct {
	Record *storage.Record
	Err    error
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

const (
	modelsTimeout  = 10 * time.Second
	libraryTimeout = 5 * time.Second
)

// ExchangeCmd runs one exchange off the program loop. cancel is released
// when the exchange returns.
func ExchangeCmd(ctx context.Context, cancel context.CancelFunc, c chat.Completer, sessionID string, req ollama.ChatRequest) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		return GenerationDoneMsg{Result: chat.Exchange(ctx, c, sessionID, req)}
	}
}

// ListModelsCmd fetches the model catalog.
func ListModelsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), modelsTimeout)
		defer cancel()

		models, err := b.ListModels(ctx)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

// StoreCmd saves rec to the library.
func StoreCmd(store storage.Store, sessionID string, rec *storage.Record) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), libraryTimeout)
		defer cancel()

		id, err := store.Save(ctx, rec)
		return StoredMsg{SessionID: sessionID, ID: id, Title: rec.Title, Err: err}
	}
}

// ListChatsCmd lists the library.
func ListChatsCmd(store storage.Store) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), libraryTimeout)
		defer cancel()

		metas, err := store.List(ctx)
		return ChatsListedMsg{Chats: metas, Err: err}
	}
}

// OpenChatCmd loads one saved chat.
func OpenChatCmd(store storage.Store, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), libraryTimeout)
		defer cancel()

		rec, err := store.Load(ctx, id)
		return ChatOpenedMsg{Record: rec, Err: err}
	}
}
