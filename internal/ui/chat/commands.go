// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (m Model) runCommand(text string) (tea.Model, tea.Cmd) {
	res := m.parser.Parse(text)

	// /model without a name opens the picker.
	if res.ID() == commands.CmdModel && len(res.Args) == 0 {
		return m.openPicker("")
	}
	if err := res.Validate(); err != nil {
		m.addError(err.Error())
		m.refresh()
		return m, nil
	}

	if msg, handled, err := commands.ApplySession(m.session, res); handled {
		switch {
		case err != nil:
			m.addError(chat.Describe(err))
		case res.ID() == commands.CmdClear:
			m.notes = nil
			m.addNote(msg)
		default:
			m.addNote(msg)
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	switch res.ID() {
	case commands.CmdHelp:
		m.addNote(m.registry.Help())

	case commands.CmdQuit:
		return m.quit()

	case commands.CmdNew:
		m.newChat()
		m.addNote("Started a new chat.")

	case commands.CmdModel:
		name, err := m.catalog.Resolve(res.Args[0])
		if err != nil {
			m.addError(chat.Describe(err))
			break
		}
		m.session.SetModel(name)
		m.addNote(fmt.Sprintf("Switched to model %s.", name))

	case commands.CmdModels:
		if m.catalog.Len() == 0 {
			m.status = "Refreshing model list..."
			return m, ListModelsCmd(m.opts.Backend)
		}
		m.addNote(commands.FormatModels(m.catalog, m.session.Config().Model))

	case commands.CmdSave:
		var path string
		if len(res.Args) > 0 {
			path = res.Args[0]
		}
		saved, err := commands.SaveFile(m.session, path)
		if err != nil {
			m.addError(chat.Describe(err))
			break
		}
		m.addNote("Chat saved to " + saved + ".")

	case commands.CmdLoad:
		s, msg, err := commands.LoadFile(res.Args[0], m.session.Config(), m.catalog)
		if err != nil {
			m.addError(chat.Describe(err))
			break
		}
		m.log.Info("chat file loaded", zap.String("path", res.Args[0]), zap.Int("messages", s.Len()))
		m.replaceSession(s, "")
		m.addNote(msg)

	case commands.CmdAttach:
		if len(res.Args) == 0 {
			m.addNote(m.attachments.Summary())
			break
		}
		added, err := m.attachments.Add(res.Args...)
		if err != nil {
			m.addError("Error: " + err.Error())
			break
		}
		for _, a := range added {
			m.log.Info("file attached", zap.String("path", a.Path), zap.Int("bytes", len(a.Content)))
		}
		m.addNote(m.attachments.Summary())

	case commands.CmdDetach:
		n := m.attachments.Len()
		m.attachments.Clear()
		m.addNote(fmt.Sprintf("Dropped %d attached file(s).", n))

	case commands.CmdCopy:
		msg, err := commands.CopyLastReply(m.session, m.opts.Clipboard)
		if err != nil {
			m.addError(chat.Describe(err))
			break
		}
		m.addNote(msg)

	case commands.CmdStore:
		if !m.libraryEnabled() {
			break
		}
		if m.session.Len() == 0 {
			m.addError("Nothing to store yet.")
			break
		}
		if title := strings.TrimSpace(res.RawArgs); title != "" {
			m.session.Title = title
		}
		rec := storage.FromSession(m.session)
		rec.ID = m.savedID
		cmd = StoreCmd(m.opts.Store, m.session.ID, rec)

	case commands.CmdChats:
		if m.libraryEnabled() {
			cmd = ListChatsCmd(m.opts.Store)
		}

	case commands.CmdOpen:
		if m.libraryEnabled() {
			cmd = OpenChatCmd(m.opts.Store, res.Args[0])
		}
	}

	m.refresh()
	return m, cmd
}

func (m *Model) libraryEnabled() bool {
	if m.opts.Store == nil {
		m.addError("The chat library is disabled.")
		return false
	}
	return true
}

// =============================================================================
// LIBRARY RESULTS
// =============================================================================

func (m Model) handleStored(msg StoredMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.log.Warn("storing chat failed", zap.Error(msg.Err))
		m.addError("Error: could not store chat: " + msg.Err.Error())
		m.refresh()
		return m, nil
	}
	if msg.SessionID == m.session.ID {
		m.savedID = msg.ID
		m.session.Title = msg.Title
	}
	m.addNote(fmt.Sprintf("Chat stored as %q (%s).", msg.Title, msg.ID))
	m.refresh()
	return m, nil
}

func (m Model) handleChatsListed(msg ChatsListedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.addError("Error: could not list chats: " + msg.Err.Error())
		m.refresh()
		return m, nil
	}

	m.chatIDs = make([]string, len(msg.Chats))
	for i, c := range msg.Chats {
		m.chatIDs[i] = c.ID
	}
	m.addNote(storage.FormatList(msg.Chats))
	m.refresh()
	return m, nil
}

func (m Model) handleChatOpened(msg ChatOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.addError(chat.Describe(msg.Err))
		m.refresh()
		return m, nil
	}

	current := m.session.Config()
	s := msg.Record.Session(current)
	line := fmt.Sprintf("Opened %q (%d messages).", s.Title, s.Len())
	if want := s.Config().Model; m.catalog.Len() > 0 && !m.catalog.Contains(want) {
		s.SetModel(current.Model)
		line += fmt.Sprintf(" Model %q is not available, keeping %q.", want, current.Model)
	}

	m.replaceSession(s, msg.Record.ID)
	m.addNote(line)
	m.refresh()
	return m, nil
}
