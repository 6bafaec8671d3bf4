// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/render"
	"github.com/jeranaias/ollama-chat/internal/storage"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// Backend is the part of the Ollama client the UI needs.
// *ollama.Client satisfies it.
type Backend interface {
	chat.Completer
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
}

// Options configures a Model.
type Options struct {
	Backend Backend

	// Store backs /store, /chats and /open. Nil disables them.
	Store storage.Store

	// Clipboard receives /copy. Nil uses the system clipboard.
	Clipboard commands.ClipboardFunc

	// Renderer styles assistant replies as markdown. Nil prints them raw.
	Renderer *render.Terminal

	Logger *zap.Logger
	Theme  *styles.Theme

	// Defaults seed the first session. A non-empty Model skips the picker
	// when the service lists it.
	Defaults chat.GenerationConfig
}

// =============================================================================
// CHAT STATE
// =============================================================================

type phase int

const (
	phaseLoading phase = iota // waiting for the model list
	phasePicker               // choosing a model
	phaseChat                 // conversation
)

// note is a display-only line placed after the first `after` history
// entries. Notes never reach the model.
type note struct {
	after int
	text  string
	err   bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat program.
type Model struct {
	opts  Options
	theme *styles.Theme
	keys  KeyMap
	log   *zap.Logger

	// Conversation
	session *chat.Session
	catalog chat.Catalog
	savedID string // library ID once stored or opened
	chatIDs []string
	notes   []note

	attachments commands.Attachments // sent ahead of the next message

	// Commands
	registry  *commands.Registry
	parser    *commands.Parser
	completer *commands.Completer

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	picker   list.Model

	phase      phase
	pickerNote string
	status     string
	width      int
	height     int
	ready      bool
	quitting   bool

	cancel *cancelManager
}

// New creates the chat model. The first session starts from opts.Defaults.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type a message, or /help for commands"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()
	sp.Style = opts.Theme.Spinner

	registry := commands.NewRegistry()

	return Model{
		opts:      opts,
		theme:     opts.Theme,
		keys:      keys,
		log:       opts.Logger,
		session:   chat.NewSession(opts.Defaults),
		catalog:   chat.NewCatalog(nil),
		registry:  registry,
		parser:    commands.NewParser(registry),
		completer: commands.NewCompleter(registry),
		viewport:  viewport.New(80, 20),
		input:     ta,
		spinner:   sp,
		picker:    newPicker(opts.Theme),
		phase:     phaseLoading,
		cancel:    newCancelManager(),
	}
}

// Init starts the cursor and fetches the model list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, ListModelsCmd(m.opts.Backend))
}

// Session returns the live session.
func (m Model) Session() *chat.Session {
	return m.session
}

// Catalog returns the last model list received.
func (m Model) Catalog() chat.Catalog {
	return m.catalog
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ModelsLoadedMsg:
		return m.handleModelsLoaded(msg)

	case GenerationDoneMsg:
		return m.handleGenerationDone(msg)

	case StoredMsg:
		return m.handleStored(msg)

	case ChatsListedMsg:
		return m.handleChatsListed(msg)

	case ChatOpenedMsg:
		return m.handleChatOpened(msg)

	case spinner.TickMsg:
		if m.phase == phaseLoading || m.session.IsGenerating() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.phase {
	case phasePicker:
		m.picker, cmd = m.picker.Update(msg)
	case phaseChat:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.phase {
	case phaseLoading:
		return m.renderLoading()
	case phasePicker:
		return m.renderPicker()
	}
	return m.renderChat()
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// header + input border + input + status bar
	const (
		headerHeight    = 1
		statusBarHeight = 1
	)
	m.input.SetWidth(max(msg.Width-2, 10))
	inputHeight := m.input.Height() + 1

	vpHeight := max(msg.Height-headerHeight-inputHeight-statusBarHeight, 1)
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	m.picker.SetSize(msg.Width, max(msg.Height-2, 3))
	m.refresh()
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancel.cancel()
	m.quitting = true
	return m, tea.Quit
}

// =============================================================================
// CONVERSATION STATE
// =============================================================================

func (m *Model) addNote(text string) {
	m.notes = append(m.notes, note{after: m.session.Len(), text: text})
}

func (m *Model) addError(text string) {
	m.notes = append(m.notes, note{after: m.session.Len(), text: text, err: true})
}

// replaceSession swaps in s. Pending results for the old session become
// stale and are dropped when they arrive.
func (m *Model) replaceSession(s *chat.Session, savedID string) {
	m.session = s
	m.savedID = savedID
	m.notes = nil
	m.status = ""
}

func (m *Model) newChat() {
	m.replaceSession(chat.NewSession(m.session.Config()), "")
}

// refresh re-renders the history into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}
