// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen Bubble Tea chat interface.
//
// The Model owns a single chat.Session. Sending runs chat.Exchange inside a
// tea.Cmd; the GenerationDoneMsg it produces is applied in Update, on the
// program loop, so the session is only ever touched by one goroutine.
// Results for a session that has since been replaced (/new, /load, /open)
// are dropped.
//
// Screens:
//   - model picker (bubbles/list), shown when no configured model resolves
//   - chat view: header, viewport history, textarea input, status bar
//
// Slash commands are parsed by internal/commands so the line REPL and this
// UI accept the same set.
package chat
