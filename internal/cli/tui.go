// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/render"
	"github.com/jeranaias/ollama-chat/internal/storage"
	uichat "github.com/jeranaias/ollama-chat/internal/ui/chat"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat (default)",
		Long: `Open the full-screen chat.

When stdin or stdout is not a terminal this behaves like "chat".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd, &flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (a *app) runTUI(cmd *cobra.Command, flags *sessionFlags) error {
	if !IsTTY() || !IsStdoutTTY() {
		return a.runREPL(cmd, flags)
	}

	defaults, err := flags.apply(cmd, a.cfg.ChatDefaults())
	if err != nil {
		return err
	}

	log, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	var store storage.Store
	if s, err := a.openStore(); err != nil {
		log.Warn("chat library unavailable", zap.Error(err))
	} else {
		store = s
		defer s.Close()
	}

	theme := styles.NewTheme()
	var renderer *render.Terminal
	if a.cfg.UI.Markdown {
		style := "light"
		if theme.IsDark {
			style = "dark"
		}
		renderer = render.NewTerminal(wrapWidth(a.cfg.UI.WordWrap), style)
	}

	model := uichat.New(uichat.Options{
		Backend:   a.backend(),
		Store:     store,
		Renderer:  renderer,
		Logger:    log.Logger,
		Theme:     theme,
		Defaults:  defaults,
		Clipboard: a.clipboard,
	})

	log.Info("starting tui", zap.String("api", a.cfg.API.URL), zap.String("model", defaults.Model))
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
