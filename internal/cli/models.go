// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/ui/styles"
)

// =============================================================================
// MODELS
// =============================================================================

func newModelsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"list"},
		Short:   "List the models Ollama has installed",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			models, err := a.backend().ListModels(ctx)
			out := cmd.OutOrStdout()
			if asJSON {
				if err != nil {
					_ = NewJSONErrorResponse("models", err).Print(out)
					return err
				}
				return NewJSONResponse("models", map[string]any{"models": models}).Print(out)
			}
			if err != nil {
				return fmt.Errorf("could not list models: %s", chat.Describe(err))
			}
			fmt.Fprintln(out, commands.FormatModels(chat.NewCatalog(models), a.cfg.Generation.Model))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// =============================================================================
// PULL
// =============================================================================

const progressBarWidth = 30

func newPullCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull MODEL",
		Short: "Download a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p := &pullPrinter{out: out, tty: IsStdoutTTY()}

			// Downloads outlast the chat timeout; only Ctrl+C stops them.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			b := a.newBackend(a.cfg.API.URL, 0)
			if err := b.Pull(ctx, args[0], p.print); err != nil {
				p.finish()
				return fmt.Errorf("pull %s: %s", args[0], chat.Describe(err))
			}
			p.finish()
			fmt.Fprintln(out, SuccessStyle.Render("Pulled "+args[0]+"."))
			return nil
		},
	}
}

// pullPrinter redraws one progress line per layer on a terminal and prints
// each status change once otherwise.
type pullPrinter struct {
	out        io.Writer
	tty        bool
	lastStatus string
	open       bool
}

func (p *pullPrinter) print(pr ollama.PullProgress) {
	pct := pr.Percent()
	if pct < 0 {
		if pr.Status != p.lastStatus {
			p.finish()
			fmt.Fprintln(p.out, DimStyle.Render(pr.Status))
		}
		p.lastStatus = pr.Status
		return
	}

	if p.tty {
		fmt.Fprintf(p.out, "\r%s [%s] %5.1f%%", pr.Status, styles.RenderProgressBar(progressBarWidth, pct), pct)
		p.open = true
	} else if pr.Status != p.lastStatus {
		fmt.Fprintln(p.out, pr.Status)
	}
	p.lastStatus = pr.Status
}

func (p *pullPrinter) finish() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}
