// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// DefaultTitle names a session that was never titled.
const DefaultTitle = "Untitled Chat"

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation: its history, its generation parameters and
// whether a response is currently awaited.
//
// A Session is not safe for concurrent use. Front-ends mutate it from a
// single owner (the UI loop, or a handler holding the session's lock) and
// run the HTTP exchange elsewhere, handing the Result back to the owner.
type Session struct {
	ID        string
	Title     string
	CreatedAt time.Time

	config     GenerationConfig
	history    []Message
	generating bool
	notice     string
}

// NewSession creates an idle session with an empty history.
func NewSession(cfg GenerationConfig) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: time.Now(),
		config:    cfg,
	}
}

// Config returns the current generation parameters.
func (s *Session) Config() GenerationConfig {
	return s.config
}

// History returns a copy of the conversation in insertion order.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	return len(s.history)
}

// IsGenerating reports whether a request is outstanding.
func (s *Session) IsGenerating() bool {
	return s.generating
}

// Notice returns the last user-visible failure notice, if any.
func (s *Session) Notice() string {
	return s.notice
}

// ClearNotice drops the last notice.
func (s *Session) ClearNotice() {
	s.notice = ""
}

// =============================================================================
// CONFIG SETTERS
// =============================================================================

// SetModel selects the model for subsequent requests.
func (s *Session) SetModel(name string) {
	s.config.Model = name
}

// SetTemperature updates the sampling temperature.
func (s *Session) SetTemperature(t float64) error {
	if err := ValidateTemperature(t); err != nil {
		return err
	}
	s.config.Temperature = t
	return nil
}

// SetMaxTokens updates the generation limit.
func (s *Session) SetMaxTokens(n int) error {
	if err := ValidateMaxTokens(n); err != nil {
		return err
	}
	s.config.MaxTokens = n
	return nil
}

// SetSystemPrompt replaces the system prompt. An empty prompt disables it.
func (s *Session) SetSystemPrompt(p string) {
	s.config.SystemPrompt = strings.TrimSpace(p)
}

// SetConfig replaces all parameters after validating them.
func (s *Session) SetConfig(cfg GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.config = cfg
	return nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// AppendUserMessage adds the user's text to the history. Text that is blank
// after trimming is refused with ErrEmptyInput and changes nothing.
func (s *Session) AppendUserMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	s.history = append(s.history, Message{Role: RoleUser, Content: text})
	return nil
}

// RequestMessages returns the messages a request would carry: the system
// prompt first when one is set, then the full history.
func (s *Session) RequestMessages() []ollama.Message {
	out := make([]ollama.Message, 0, len(s.history)+1)
	if s.config.SystemPrompt != "" {
		out = append(out, ollama.Message{Role: string(RoleSystem), Content: s.config.SystemPrompt})
	}
	for _, m := range s.history {
		out = append(out, m.wire())
	}
	return out
}

// BuildRequest produces the request payload for the current state and
// marks the session as awaiting a response. It refuses while a response is
// already pending and when no model is set. History is never modified.
func (s *Session) BuildRequest() (ollama.ChatRequest, error) {
	if s.generating {
		return ollama.ChatRequest{}, ErrAlreadyGenerating
	}
	if s.config.Model == "" {
		return ollama.ChatRequest{}, ErrNoModelSelected
	}

	req := ollama.ChatRequest{
		Model:    s.config.Model,
		Messages: s.RequestMessages(),
		Stream:   false,
		Options: &ollama.Options{
			Temperature: s.config.Temperature,
			NumPredict:  s.config.MaxTokens,
		},
	}
	s.generating = true
	s.notice = ""
	return req, nil
}

// replyEnvelope keeps "message" raw so a missing key and an empty object
// can be told apart.
type replyEnvelope struct {
	Message json.RawMessage `json:"message"`
}

// ApplyResponse interprets a successful reply body. Non-empty message
// content is appended as an assistant message and returned. The session
// always returns to idle.
func (s *Session) ApplyResponse(body []byte) (string, error) {
	s.generating = false

	var env replyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", s.fail(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if len(env.Message) == 0 || string(env.Message) == "null" {
		return "", s.fail(ErrMalformedResponse)
	}

	var msg struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return "", s.fail(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if msg.Content == "" {
		return "", s.fail(ErrEmptyModelResponse)
	}

	s.history = append(s.history, Message{Role: RoleAssistant, Content: msg.Content})
	return msg.Content, nil
}

// ApplyError records a failed exchange and returns the session to idle.
// History is untouched. The returned string is the notice to display.
func (s *Session) ApplyError(cause error) string {
	s.generating = false
	s.notice = Describe(cause)
	return s.notice
}

func (s *Session) fail(err error) error {
	s.notice = Describe(err)
	return err
}

// Clear empties the history. Generation parameters are kept.
func (s *Session) Clear() {
	s.history = nil
	s.notice = ""
}
