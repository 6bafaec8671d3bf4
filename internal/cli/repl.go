// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/render"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// errQuit ends the REPL loop without an error.
var errQuit = errors.New("quit")

func newChatCommand(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line in the current terminal",
		Long: `Chat line by line with input history (arrow keys recall earlier lines).

Type /help for commands. Ctrl+C or Ctrl+D exits, also while waiting for
a reply; the pending request is abandoned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runREPL(cmd, &flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader is the REPL's input source.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader adds line editing and a persistent history file.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	r := &linerReader{state: state, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = state.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves the history with owner-only permissions.
func (r *linerReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = r.state.WriteHistory(f)
			f.Close()
		}
	}
	return r.state.Close()
}

// scanReader reads piped input. Prompts are not echoed.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	return &scanReader{sc: sc}
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	session  *chat.Session
	backend  backend
	store    storage.Store
	catalog  chat.Catalog
	registry *commands.Registry
	parser   *commands.Parser
	renderer *render.Terminal
	log      *zap.Logger
	in       lineReader
	out      io.Writer
	savedID  string

	attachments commands.Attachments
	clipboard   commands.ClipboardFunc
}

func (a *app) runREPL(cmd *cobra.Command, flags *sessionFlags) error {
	defaults, err := flags.apply(cmd, a.cfg.ChatDefaults())
	if err != nil {
		return err
	}

	log, err := a.fileLogger()
	if err != nil {
		return err
	}
	defer log.Close()

	var in lineReader
	if IsTTY() {
		dir, err := config.ConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		in = newLinerReader(filepath.Join(dir, "chat_history"))
	} else {
		in = newScanReader(cmd.InOrStdin())
	}
	defer in.Close()

	r := newREPL(a.backend(), defaults, cmd.OutOrStdout(), in, log.Logger)
	r.clipboard = a.clipboard
	if s, err := a.openStore(); err != nil {
		log.Warn("chat library unavailable", zap.Error(err))
	} else {
		r.store = s
		defer s.Close()
	}
	if a.cfg.UI.Markdown && IsStdoutTTY() {
		r.renderer = render.NewTerminal(wrapWidth(a.cfg.UI.WordWrap), markdownStyle())
	}

	return r.run(cmd.Context(), flags.model != "")
}

func newREPL(b backend, defaults chat.GenerationConfig, out io.Writer, in lineReader, log *zap.Logger) *repl {
	registry := commands.NewRegistry()
	return &repl{
		session:  chat.NewSession(defaults),
		backend:  b,
		registry: registry,
		parser:   commands.NewParser(registry),
		log:      log,
		in:       in,
		out:      out,
	}
}

// run fetches the catalog, settles on a model and loops until the user
// quits. modelFromFlag makes an unknown model fatal instead of prompting.
func (r *repl) run(ctx context.Context, modelFromFlag bool) error {
	fmt.Fprintln(r.out, TitleStyle.Render("Ollama Chat"))
	fmt.Fprintln(r.out, DimStyle.Render("A terminal client for Ollama models. Type /help for commands."))
	fmt.Fprintln(r.out)

	if err := r.loadModels(ctx); err != nil {
		return fmt.Errorf("could not reach Ollama at %s (is it running?): %w", r.backend.BaseURL(), err)
	}

	want := r.session.Config().Model
	switch {
	case want != "" && r.catalog.Contains(want):
	case want != "" && modelFromFlag:
		fmt.Fprintln(r.out, ErrorStyle.Render(fmt.Sprintf("Model '%s' not found.", want)))
		fmt.Fprintln(r.out, WarningStyle.Render("Available models: "+strings.Join(r.catalog.Names(), ", ")))
		return fmt.Errorf("%w: model %q not found", chat.ErrNoModelSelected, want)
	default:
		if want != "" {
			fmt.Fprintln(r.out, WarningStyle.Render(fmt.Sprintf("Model %q not found. Choose another.", want)))
		}
		name, err := r.selectModel()
		if err != nil {
			return err
		}
		r.session.SetModel(name)
	}

	fmt.Fprintln(r.out, SuccessStyle.Render("Starting chat with "+r.session.Config().Model+"..."))
	r.log.Info("repl started", zap.String("model", r.session.Config().Model))

	for {
		line, err := r.in.Prompt(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				fmt.Fprintln(r.out, SuccessStyle.Render("Chat session ended."))
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			line = "/quit"
		}

		if commands.IsCommand(line) {
			if err := r.command(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					fmt.Fprintln(r.out, SuccessStyle.Render("Chat session ended."))
					return nil
				}
				r.printError(chat.Describe(err))
			}
			continue
		}
		if err := r.send(ctx, line); errors.Is(err, errQuit) {
			fmt.Fprintln(r.out)
			fmt.Fprintln(r.out, SuccessStyle.Render("Chat session ended."))
			return nil
		}
	}
}

func (r *repl) loadModels(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := r.backend.ListModels(ctx)
	if err != nil {
		return err
	}
	r.catalog = chat.NewCatalog(models)
	return nil
}

// selectModel shows a numbered menu and reads a choice.
func (r *repl) selectModel() (string, error) {
	if r.catalog.Len() == 0 {
		fmt.Fprintln(r.out, ErrorStyle.Render("No models available. Pull one with `ollama pull <model>`."))
		return "", chat.ErrNoModelSelected
	}

	names := r.catalog.Names()
	fmt.Fprintln(r.out, TitleStyle.Render("Available Models:"))
	for i, name := range names {
		fmt.Fprintf(r.out, "%s %s\n", PromptStyle.Render(fmt.Sprintf("[%d]", i+1)), name)
	}

	prompt := PromptStyle.Render(fmt.Sprintf("Select a model (1-%d): ", len(names)))
	for {
		line, err := r.in.Prompt(prompt)
		if err != nil {
			fmt.Fprintln(r.out, ErrorStyle.Render("Model selection cancelled."))
			return "", chat.ErrNoModelSelected
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(r.out, WarningStyle.Render("Please enter a number."))
			continue
		}
		if n < 1 || n > len(names) {
			fmt.Fprintln(r.out, WarningStyle.Render("Invalid choice. Please try again."))
			continue
		}
		return names[n-1], nil
	}
}

// send runs one exchange. The request runs on its own goroutine and the
// result is applied here. Ctrl+C while waiting abandons the request and ends
// the session with errQuit.
func (r *repl) send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		r.printError(chat.Describe(chat.ErrEmptyInput))
		return nil
	}
	if err := r.attachments.Flush(r.session); err != nil {
		r.printError(chat.Describe(err))
		return nil
	}
	if err := r.session.AppendUserMessage(text); err != nil {
		r.printError(chat.Describe(err))
		return nil
	}
	req, err := r.session.BuildRequest()
	if err != nil {
		r.printError(chat.Describe(err))
		return nil
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(r.out, DimStyle.Render("Thinking..."))
	done := make(chan chat.Result, 1)
	go func() {
		done <- chat.Exchange(sigCtx, r.backend, r.session.ID, req)
	}()
	res := <-done

	if sigCtx.Err() != nil && ctx.Err() == nil {
		r.log.Info("request abandoned by interrupt", zap.Duration("elapsed", res.Elapsed))
		return errQuit
	}

	reply, err := r.session.Complete(res)
	if err != nil {
		r.log.Warn("chat request failed", zap.Duration("elapsed", res.Elapsed), zap.Error(err))
		r.printError(r.session.Notice())
		r.session.ClearNotice()
		return nil
	}
	fields := []zap.Field{zap.Int("chars", len(reply)), zap.Duration("elapsed", res.Elapsed)}
	var stats ollama.ChatResponse
	if json.Unmarshal(res.Body, &stats) == nil && stats.EvalCount > 0 {
		fields = append(fields, zap.Float64("tokens_per_sec", stats.TokensPerSecond()))
	}
	r.log.Info("reply received", fields...)

	fmt.Fprintln(r.out, AssistantStyle.Render(r.session.Config().Model+":"))
	if r.renderer != nil {
		fmt.Fprintln(r.out, strings.TrimRight(r.renderer.Render(reply), "\n"))
	} else {
		fmt.Fprintln(r.out, reply)
	}
	fmt.Fprintln(r.out)
	return nil
}

func (r *repl) printError(msg string) {
	fmt.Fprintln(r.out, ErrorStyle.Render(msg))
}

func (r *repl) printNote(msg string) {
	fmt.Fprintln(r.out, DimStyle.Render(msg))
}
