// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AppVersion is written into every chat file.
const AppVersion = "1.0.0"

// =============================================================================
// CHAT FILE
// =============================================================================

// File is the on-disk chat document. Only Messages is required when
// loading; unknown fields are ignored.
type File struct {
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	Timestamp    Timestamp `json:"timestamp"`
	SystemPrompt string    `json:"system_prompt"`
	Messages     []Message `json:"messages"`
	AppVersion   string    `json:"app_version"`

	// Generation parameters are optional extras; older files lack them.
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Serialize captures the session as a chat file document.
func (s *Session) Serialize() ([]byte, error) {
	return json.MarshalIndent(s.ToFile(), "", "  ")
}

// ToFile captures the session as a File value.
func (s *Session) ToFile() File {
	temp := s.config.Temperature
	tokens := s.config.MaxTokens
	title := s.Title
	if title == "" {
		title = DefaultTitle
	}

	return File{
		Title:        title,
		Model:        s.config.Model,
		Timestamp:    Timestamp(time.Now()),
		SystemPrompt: s.config.SystemPrompt,
		Messages:     s.History(),
		AppVersion:   AppVersion,
		Temperature:  &temp,
		MaxTokens:    &tokens,
	}
}

// ParseFile decodes and validates a chat file document.
func ParseFile(blob []byte) (File, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(blob, &keys); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidChatFile, err)
	}
	raw, ok := keys["messages"]
	if !ok {
		return File{}, fmt.Errorf("%w: missing \"messages\"", ErrInvalidChatFile)
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return File{}, fmt.Errorf("%w: \"messages\" must be an array", ErrInvalidChatFile)
	}

	var f File
	if err := json.Unmarshal(blob, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidChatFile, err)
	}
	for i, m := range f.Messages {
		if _, err := ParseRole(string(m.Role)); err != nil {
			return File{}, fmt.Errorf("%w: message %d: %v", ErrInvalidChatFile, i, err)
		}
	}
	if f.Title == "" {
		f.Title = DefaultTitle
	}
	return f, nil
}

// Deserialize builds a new idle session from a chat file. Parameters the
// file does not carry are taken from defaults.
func Deserialize(blob []byte, defaults GenerationConfig) (*Session, error) {
	f, err := ParseFile(blob)
	if err != nil {
		return nil, err
	}
	return f.Session(defaults), nil
}

// Session materializes the file as a fresh session.
func (f File) Session(defaults GenerationConfig) *Session {
	cfg := defaults
	if f.Model != "" {
		cfg.Model = f.Model
	}
	cfg.SystemPrompt = f.SystemPrompt
	if f.Temperature != nil && ValidateTemperature(*f.Temperature) == nil {
		cfg.Temperature = *f.Temperature
	}
	if f.MaxTokens != nil && ValidateMaxTokens(*f.MaxTokens) == nil {
		cfg.MaxTokens = *f.MaxTokens
	}

	s := NewSession(cfg)
	s.Title = f.Title
	if t := time.Time(f.Timestamp); !t.IsZero() {
		s.CreatedAt = t
	}
	s.history = make([]Message, len(f.Messages))
	copy(s.history, f.Messages)
	return s
}

// =============================================================================
// TIMESTAMP
// =============================================================================

// Timestamp is an ISO-8601 time that also accepts the zone-less forms
// other writers produce. Unparseable values decode as the zero time.
type Timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = Timestamp{}
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*t = Timestamp(parsed)
			return nil
		}
	}
	*t = Timestamp{}
	return nil
}

// DefaultFileName returns the suggested name for saving s now.
func DefaultFileName(now time.Time) string {
	return now.Format("ollama_chat_20060102_150405") + ".json"
}
