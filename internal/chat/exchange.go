// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// Completer performs one chat completion. *ollama.Client satisfies it.
type Completer interface {
	Chat(ctx context.Context, req ollama.ChatRequest) (json.RawMessage, error)
}

// Result is what a worker hands back to the session's owner once the
// exchange finishes.
type Result struct {
	SessionID string
	Body      json.RawMessage
	Err       error
	Elapsed   time.Duration
}

// Exchange runs the HTTP exchange for req. It touches no session state and
// is meant to run off the owner's goroutine.
func Exchange(ctx context.Context, c Completer, sessionID string, req ollama.ChatRequest) Result {
	start := time.Now()
	body, err := c.Chat(ctx, req)
	return Result{
		SessionID: sessionID,
		Body:      body,
		Err:       err,
		Elapsed:   time.Since(start),
	}
}

// Complete applies a worker result on the owner's goroutine. Results for a
// different session are refused with ErrStaleResult and change nothing.
// On success the assistant reply is returned.
func (s *Session) Complete(res Result) (string, error) {
	if res.SessionID != s.ID {
		return "", ErrStaleResult
	}
	if res.Err != nil {
		s.ApplyError(res.Err)
		return "", res.Err
	}
	return s.ApplyResponse(res.Body)
}
