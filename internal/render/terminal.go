// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Terminal renders Markdown with ANSI styling. When glamour cannot be
// initialized it passes text through unchanged.
type Terminal struct {
	mu       sync.Mutex
	renderer *glamour.TermRenderer
	width    int
}

// NewTerminal creates a renderer wrapping at width columns. style is
// "auto", "dark", "light" or "notty".
func NewTerminal(width int, style string) *Terminal {
	if width <= 0 {
		width = 80
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	switch style {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		r = nil
	}
	return &Terminal{renderer: r, width: width}
}

// Width returns the wrap width.
func (t *Terminal) Width() int {
	return t.width
}

// Render returns md styled for the terminal, or md itself on failure.
func (t *Terminal) Render(md string) string {
	if t == nil || t.renderer == nil {
		return md
	}

	t.mu.Lock()
	out, err := t.renderer.Render(md)
	t.mu.Unlock()
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
