// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// =============================================================================
// MODEL PICKER
// =============================================================================

// modelItem adapts a catalog entry to the list widget.
type modelItem struct {
	info ollama.ModelInfo
}

func (i modelItem) Title() string { return i.info.Name }

func (i modelItem) Description() string {
	parts := []string{i.info.FormatSize()}
	if d := i.info.Details; d.ParameterSize != "" {
		parts = append(parts, d.ParameterSize)
	}
	if d := i.info.Details; d.QuantizationLevel != "" {
		parts = append(parts, d.QuantizationLevel)
	}
	return strings.Join(parts, " | ")
}

func (i modelItem) FilterValue() string { return i.info.Name }

func newPicker(theme *styles.Theme) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(styles.Purple).
		BorderForeground(styles.Purple)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(styles.TextSecondary).
		BorderForeground(styles.Purple)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Select a model"
	l.Styles.Title = theme.PickerTitle
	l.SetShowHelp(true)
	l.DisableQuitKeybindings()
	return l
}

// openPicker shows the catalog with the current model highlighted. note is
// shown above the list.
func (m Model) openPicker(note string) (tea.Model, tea.Cmd) {
	if m.catalog.Len() == 0 {
		m.phase = phaseChat
		m.addError("No models to choose from. Pull one with `ollama pull <model>`, then run /models.")
		m.refresh()
		return m, nil
	}

	models := m.catalog.Models()
	items := make([]list.Item, len(models))
	current := 0
	for i, info := range models {
		items[i] = modelItem{info: info}
		if info.Name == m.session.Config().Model {
			current = i
		}
	}
	cmd := m.picker.SetItems(items)
	m.picker.ResetFilter()
	m.picker.Select(current)

	m.phase = phasePicker
	m.pickerNote = note
	return m, cmd
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.picker.FilterState() != list.Filtering {
		switch msg.Type {
		case tea.KeyEnter:
			item, ok := m.picker.SelectedItem().(modelItem)
			if !ok {
				return m, nil
			}
			m.session.SetModel(item.info.Name)
			m.phase = phaseChat
			m.pickerNote = ""
			m.addNote(fmt.Sprintf("Model %s selected. Start chatting!", item.info.Name))
			m.refresh()
			return m, textarea.Blink

		case tea.KeyEsc:
			if m.picker.FilterState() == list.FilterApplied {
				break
			}
			if m.session.Config().Model == "" {
				return m.quit()
			}
			m.phase = phaseChat
			m.pickerNote = ""
			return m, textarea.Blink
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}
