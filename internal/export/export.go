// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a chat to one output format.
type Exporter interface {
	Export(f chat.File) ([]byte, error)

	// FileExtension includes the dot, e.g. ".md".
	FileExtension() string

	MimeType() string
}

// ErrUnknownFormat is returned by ForFormat.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrNoMessages is returned when a reading format is asked for an empty chat.
var ErrNoMessages = errors.New("chat has no messages")

// Formats lists the accepted format names.
var Formats = []string{"json", "markdown", "html"}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures the reading formats. JSON ignores them.
type Options struct {
	// IncludeMetadata adds model, date and parameter details.
	IncludeMetadata bool

	// Theme for HTML export, "light" or "dark".
	Theme string

	// Now stamps the footer. Tests pin it.
	Now func() time.Time
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata: true,
		Theme:           "dark",
		Now:             time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// ForFormat returns the exporter for name. Empty means json.
func ForFormat(name string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return NewJSONExporter(), nil
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("%w %q (want %s)", ErrUnknownFormat, name, strings.Join(Formats, ", "))
}

// Filename suggests a file name for f in e's format.
func Filename(f chat.File, e Exporter, now time.Time) string {
	return fmt.Sprintf("chat_%s_%s%s", sanitizeFilename(f.Title), now.Format("20060102_150405"), e.FileExtension())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names on
// common platforms.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "chat"
	}
	return string(out)
}

func roleLabel(role chat.Role, model string) string {
	switch role {
	case chat.RoleUser:
		return "You"
	case chat.RoleAssistant:
		if model != "" {
			return "Assistant (" + model + ")"
		}
		return "Assistant"
	case chat.RoleSystem:
		return "System"
	}
	return string(role)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
