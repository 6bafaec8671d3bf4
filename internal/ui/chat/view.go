// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
	"github.com/jeranaias/ollama-chat/internal/util"
)

// =============================================================================
// SCREENS
// =============================================================================

func (m Model) renderLoading() string {
	return m.spinner.View() + " Loading models..."
}

func (m Model) renderPicker() string {
	parts := []string{m.renderHeader()}
	if m.pickerNote != "" {
		parts = append(parts, m.theme.PickerNote.Render(m.pickerNote))
	}
	parts = append(parts, m.picker.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderChat() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.renderStatusBar(),
	)
}

// =============================================================================
// HEADER AND STATUS BAR
// =============================================================================

func (m Model) renderHeader() string {
	title := m.session.Title
	if title == "" {
		title = chat.DefaultTitle
	}
	line := m.theme.HeaderTitle.Render("Ollama Chat") + "  " +
		m.theme.HeaderInfo.Render(util.TruncateWidth(title, max(m.width-16, 10)))
	return m.theme.Header.Width(m.width).Render(line)
}

// renderStatusBar shows Model | Temp | Max tokens | state.
func (m Model) renderStatusBar() string {
	cfg := m.session.Config()
	model := cfg.Model
	if model == "" {
		model = "(none)"
	}

	sep := m.theme.StatusSep.Render(" | ")
	field := func(label, value string) string {
		return m.theme.StatusLabel.Render(label+": ") + m.theme.StatusValue.Render(value)
	}

	state := m.theme.StatusReady.Render("Ready")
	if m.session.IsGenerating() {
		state = m.spinner.View() + " " + m.theme.StatusWaiting.Render("Thinking...")
	}

	left := field("Model", model) + sep +
		field("Temp", fmt.Sprintf("%.2f", cfg.Temperature)) + sep +
		field("Max tokens", fmt.Sprint(cfg.MaxTokens)) + sep +
		state

	right := m.status
	if right == "" && m.theme.GetLayoutMode() == styles.LayoutWide {
		var hints []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			hints = append(hints, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
		}
		right = strings.Join(hints, "  ")
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if right == "" || gap < 1 {
		return m.theme.StatusBar.Width(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// HISTORY
// =============================================================================

func (m Model) contentWidth() int {
	w := m.viewport.Width - 2
	if w < 20 {
		w = 20
	}
	return w
}

// renderHistory lays out the system prompt, the conversation and the notes
// interleaved at the positions they were added.
func (m Model) renderHistory() string {
	var blocks []string

	cfg := m.session.Config()
	if cfg.SystemPrompt != "" {
		blocks = append(blocks, m.theme.SystemBanner.Width(m.contentWidth()).Render("System: "+cfg.SystemPrompt))
	}

	history := m.session.History()
	if len(history) == 0 && len(m.notes) == 0 {
		blocks = append(blocks, m.theme.Empty.Render("No messages yet. Type below and press Enter."))
	}

	next := 0
	for i, msg := range history {
		for next < len(m.notes) && m.notes[next].after <= i {
			blocks = append(blocks, m.renderNote(m.notes[next]))
			next++
		}
		blocks = append(blocks, m.renderMessage(msg))
	}
	for ; next < len(m.notes); next++ {
		blocks = append(blocks, m.renderNote(m.notes[next]))
	}

	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg chat.Message) string {
	width := m.contentWidth()
	switch msg.Role {
	case chat.RoleUser:
		return m.theme.UserLabel.Render("You") + "\n" +
			m.theme.UserText.Width(width).Render(msg.Content)
	case chat.RoleAssistant:
		body := msg.Content
		if m.opts.Renderer != nil {
			body = m.opts.Renderer.Render(body)
		} else {
			body = m.theme.AssistantText.Width(width).Render(body)
		}
		return m.theme.AssistantLabel.Render("Assistant") + "\n" + body
	}
	return m.theme.SystemBanner.Width(width).Render("System: " + msg.Content)
}

func (m Model) renderNote(n note) string {
	if n.err {
		return styles.RenderError(n.text)
	}
	return m.theme.Notice.Render(n.text)
}
