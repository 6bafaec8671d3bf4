// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
)

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}

	switch m.phase {
	case phaseLoading:
		if key.Matches(msg, m.keys.Quit) {
			return m.quit()
		}
		return m, nil
	case phasePicker:
		return m.handlePickerKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Send):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		m.newChat()
		m.addNote("Started a new chat.")
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m.runCommand("/clear")

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Complete):
		return m.complete()

	case key.Matches(msg, m.keys.Copy):
		return m.runCommand("/copy")
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as a message or runs it as a command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.status = ""
	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}
	return m.send(text)
}

// =============================================================================
// GENERATION
// =============================================================================

// send appends text and starts the exchange. Refused sends leave the
// history and the input untouched.
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	if m.session.IsGenerating() {
		m.status = chat.Describe(chat.ErrAlreadyGenerating)
		return m, nil
	}
	if m.session.Config().Model == "" {
		m.addError(chat.Describe(chat.ErrNoModelSelected) + ". Use /model to pick one.")
		m.refresh()
		return m, nil
	}

	if err := m.attachments.Flush(m.session); err != nil {
		m.status = chat.Describe(err)
		return m, nil
	}
	if err := m.session.AppendUserMessage(text); err != nil {
		m.status = chat.Describe(err)
		return m, nil
	}
	req, err := m.session.BuildRequest()
	if err != nil {
		m.addError(chat.Describe(err))
		m.refresh()
		return m, nil
	}
	m.input.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel.set(cancel)

	m.log.Debug("sending chat request",
		zap.String("session", m.session.ID),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))

	m.refresh()
	return m, tea.Batch(m.spinner.Tick, ExchangeCmd(ctx, cancel, m.opts.Backend, m.session.ID, req))
}

func (m Model) handleGenerationDone(msg GenerationDoneMsg) (tea.Model, tea.Cmd) {
	reply, err := m.session.Complete(msg.Result)
	switch {
	case errors.Is(err, chat.ErrStaleResult):
		m.log.Debug("dropping stale result", zap.String("session", msg.Result.SessionID))
		return m, nil
	case err != nil:
		m.log.Warn("chat request failed",
			zap.String("session", m.session.ID),
			zap.Duration("elapsed", msg.Result.Elapsed),
			zap.Error(err))
		m.addError(m.session.Notice())
		m.session.ClearNotice()
	default:
		m.log.Info("reply received",
			zap.String("session", m.session.ID),
			zap.Int("chars", len(reply)),
			zap.Duration("elapsed", msg.Result.Elapsed))
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// MODEL LIST
// =============================================================================

func (m Model) handleModelsLoaded(msg ModelsLoadedMsg) (tea.Model, tea.Cmd) {
	first := m.phase == phaseLoading
	if first {
		m.phase = phaseChat
	}

	if msg.Err != nil {
		m.log.Warn("listing models failed", zap.Error(msg.Err))
		m.addError("Error connecting to Ollama API. Make sure Ollama is running. " + chat.Describe(msg.Err))
		m.refresh()
		return m, textarea.Blink
	}

	m.catalog = chat.NewCatalog(msg.Models)
	m.log.Debug("models loaded", zap.Int("count", m.catalog.Len()))

	if !first {
		m.addNote(commands.FormatModels(m.catalog, m.session.Config().Model))
		m.refresh()
		return m, nil
	}

	want := m.session.Config().Model
	switch {
	case m.catalog.Len() == 0:
		m.addError(commands.FormatModels(m.catalog, ""))
	case want != "" && m.catalog.Contains(want):
		m.addNote(fmt.Sprintf("Model %s selected. Start chatting!", want))
	case want != "":
		return m.openPicker(fmt.Sprintf("Model %q not found. Choose another.", want))
	default:
		return m.openPicker("")
	}
	m.refresh()
	return m, textarea.Blink
}

// =============================================================================
// COMPLETION
// =============================================================================

func (m Model) complete() (tea.Model, tea.Cmd) {
	ids := m.chatIDs
	m.completer.ModelsFn = m.catalog.Names
	m.completer.ChatsFn = func() []string { return ids }

	candidates := m.completer.Complete(m.input.Value())
	switch len(candidates) {
	case 0:
		return m, nil
	case 1:
		m.input.SetValue(candidates[0] + " ")
		m.status = ""
	default:
		m.input.SetValue(commonPrefix(candidates))
		m.status = strings.Join(candidates, "  ")
	}
	return m, nil
}

func commonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := []rune(values[0])
	for _, v := range values[1:] {
		n := 0
		for _, r := range v {
			if n >= len(prefix) || prefix[n] != r {
				break
			}
			n++
		}
		prefix = prefix[:n]
	}
	return string(prefix)
}
