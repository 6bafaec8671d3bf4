// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTML_Markdown(t *testing.T) {
	h := NewHTML()

	out, err := h.Render("**bold** and *em*\nnext line")
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "<em>em</em>")
	assert.Contains(t, out, "<br", "single newlines become line breaks")

	out, err = h.Render("| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
}

func TestHTML_Sanitizes(t *testing.T) {
	h := NewHTML()

	tests := []struct {
		name string
		in   string
		bad  string
	}{
		{"script tag", "<script>alert(1)</script>hello", "<script"},
		{"event handler", `<img src="x" onerror="alert(1)">`, "onerror"},
		{"javascript link", "[click](javascript:alert(1))", "javascript:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.Render(tt.in)
			require.NoError(t, err)
			if strings.Contains(out, tt.bad) {
				t.Errorf("Render(%q) = %q, contains %q", tt.in, out, tt.bad)
			}
		})
	}
}

func TestHTML_CodeBlocks(t *testing.T) {
	h := NewHTML()

	out, err := h.Render("```go\nfunc main() {}\n```")
	require.NoError(t, err)
	assert.Contains(t, out, `class="chroma"`)
	assert.Contains(t, out, "<span")
	assert.Contains(t, out, "main")

	out, err = h.Render("```no-such-language\n<b>x</b>\n```")
	require.NoError(t, err)
	assert.NotContains(t, out, "<b>x</b>", "code is escaped")
	assert.Contains(t, out, "&lt;")

	assert.Contains(t, h.CSS(), ".chroma")
}

func TestHTML_Concurrent(t *testing.T) {
	h := NewHTML()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Render("# Title\n\n```python\nprint('hi')\n```")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestTerminal(t *testing.T) {
	term := NewTerminal(40, "notty")
	assert.Equal(t, 40, term.Width())

	out := term.Render("# Heading\n\nSome *text*.")
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "text")

	var nilTerm *Terminal
	assert.Equal(t, "raw", nilTerm.Render("raw"))
}
