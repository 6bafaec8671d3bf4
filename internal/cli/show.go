// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/render"
)

func newShowCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print a saved chat file",
		Long: `Print a chat file written by /save. Assistant replies are rendered as
markdown unless --raw is given or output is not a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", chat.ErrInvalidChatFile, err)
			}
			f, err := chat.ParseFile(blob)
			if err != nil {
				return err
			}
			printTranscript(cmd.OutOrStdout(), f, a.transcriptRenderer(raw))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print replies without markdown rendering")
	return cmd
}

func (a *app) transcriptRenderer(raw bool) *render.Terminal {
	if raw || !a.cfg.UI.Markdown || !IsStdoutTTY() {
		return nil
	}
	return render.NewTerminal(wrapWidth(a.cfg.UI.WordWrap), markdownStyle())
}

// printTranscript writes a header and every message of f.
func printTranscript(out io.Writer, f chat.File, renderer *render.Terminal) {
	fmt.Fprintln(out, TitleStyle.Render(f.Title))
	if f.Model != "" {
		fmt.Fprintln(out, RenderField("Model", f.Model))
	}
	if ts := time.Time(f.Timestamp); !ts.IsZero() {
		fmt.Fprintln(out, RenderField("Saved", ts.Local().Format("2006-01-02 15:04")))
	}
	fmt.Fprintln(out, RenderField("Messages", fmt.Sprint(len(f.Messages))))
	if f.SystemPrompt != "" {
		fmt.Fprintln(out, RenderField("System", f.SystemPrompt))
	}
	fmt.Fprintln(out, RenderSeparator())

	for _, m := range f.Messages {
		switch m.Role {
		case chat.RoleUser:
			fmt.Fprintln(out, UserStyle.Render("You:"))
			fmt.Fprintln(out, m.Content)
		case chat.RoleAssistant:
			label := "Assistant:"
			if f.Model != "" {
				label = f.Model + ":"
			}
			fmt.Fprintln(out, AssistantStyle.Render(label))
			if renderer != nil {
				fmt.Fprintln(out, strings.TrimRight(renderer.Render(m.Content), "\n"))
			} else {
				fmt.Fprintln(out, m.Content)
			}
		default:
			fmt.Fprintln(out, DimStyle.Render("System: "+m.Content))
		}
		fmt.Fprintln(out)
	}
}
