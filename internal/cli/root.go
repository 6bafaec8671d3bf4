// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/commands"
	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/logging"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// backend is the slice of the Ollama client the commands use.
type backend interface {
	chat.Completer
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	Version(ctx context.Context) (string, error)
	Pull(ctx context.Context, name string, fn ollama.ProgressCallback) error
	BaseURL() string
}

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries what every command needs once the config is loaded.
type app struct {
	cfg *config.Config

	// Persistent flags.
	cfgPath  string
	apiURL   string
	logLevel string

	// newBackend builds the service client. A zero timeout means none.
	// Tests replace it.
	newBackend func(baseURL string, timeout time.Duration) backend

	// clipboard receives /copy in both front-ends.
	clipboard commands.ClipboardFunc
}

func newApp() *app {
	return &app{
		newBackend: func(baseURL string, timeout time.Duration) backend {
			return ollama.NewClientWithConfig(&ollama.ClientConfig{
				BaseURL: baseURL,
				Timeout: timeout,
			})
		},
		clipboard: commands.SystemClipboard,
	}
}

// load resolves the config file, the environment and the persistent flags,
// in that order of precedence.
func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.URL = strings.TrimRight(a.apiURL, "/")
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) configPath() (string, error) {
	if a.cfgPath != "" {
		return a.cfgPath, nil
	}
	return config.ConfigPath()
}

func (a *app) backend() backend {
	return a.newBackend(a.cfg.API.URL, a.cfg.RequestTimeout())
}

func (a *app) openStore() (storage.Store, error) {
	return storage.Open(storage.Options{
		Backend:  a.cfg.Storage.Backend,
		Dir:      a.cfg.ChatsDir(),
		MaxChats: a.cfg.Storage.MaxChats,
	})
}

// fileLogger logs to the configured file only. The terminal front-ends own
// the screen, so nothing goes to stderr.
func (a *app) fileLogger() (*logging.Logger, error) {
	file := a.cfg.Log.File
	if file == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return logging.Nop(), nil
		}
		file = filepath.Join(dir, "ollama-chat.log")
	}
	return logging.New(logging.Options{
		Level:         a.cfg.Log.Level,
		FileName:      file,
		MaxFileSizeMB: a.cfg.Log.MaxSizeMB,
		MaxBackups:    a.cfg.Log.MaxBackups,
		MaxAgeDays:    a.cfg.Log.MaxAgeDays,
	})
}

// =============================================================================
// COMMAND TREE
// =============================================================================

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := newApp()
	return newRootCommand(a)
}

func newRootCommand(a *app) *cobra.Command {
	var flags sessionFlags

	rootCmd := &cobra.Command{
		Use:   "ollama-chat",
		Short: "Chat with models served by a local Ollama instance",
		Long: `ollama-chat talks to the Ollama HTTP API (default ` + ollama.DefaultBaseURL + `).

Without a subcommand it opens the full-screen chat. Chats can be saved to
JSON files, kept in a local library, or served to a browser with "serve".`,
		Version:       chat.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd, &flags)
		},
	}
	flags.bind(rootCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default ~/.ollama-chat/config.toml)")
	pf.StringVar(&a.apiURL, "api-url", "", "Ollama API base URL")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newTUICommand(a),
		newChatCommand(a),
		newServeCommand(a),
		newModelsCommand(a),
		newPullCommand(a),
		newShowCommand(a),
		newChatsCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return rootCmd
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	ctx := context.Background()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// =============================================================================
// SESSION FLAGS
// =============================================================================

// sessionFlags override the configured generation settings for one run.
type sessionFlags struct {
	model     string
	temp      float64
	maxTokens int
	system    string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.model, "model", "m", "", "model to chat with (skips selection)")
	fl.Float64Var(&f.temp, "temp", chat.DefaultTemperature, "sampling temperature, 0.0 to 1.0")
	fl.IntVar(&f.maxTokens, "max-tokens", chat.DefaultMaxTokens, "reply length limit")
	fl.StringVar(&f.system, "system", "", "system prompt")
}

// apply layers the flags the user set over base.
func (f *sessionFlags) apply(cmd *cobra.Command, base chat.GenerationConfig) (chat.GenerationConfig, error) {
	fl := cmd.Flags()
	if fl.Changed("model") {
		base.Model = f.model
	}
	if fl.Changed("temp") {
		if err := chat.ValidateTemperature(f.temp); err != nil {
			return base, fmt.Errorf("--temp: %w", err)
		}
		base.Temperature = f.temp
	}
	if fl.Changed("max-tokens") {
		if err := chat.ValidateMaxTokens(f.maxTokens); err != nil {
			return base, fmt.Errorf("--max-tokens: %w", err)
		}
		base.MaxTokens = f.maxTokens
	}
	if fl.Changed("system") {
		base.SystemPrompt = f.system
	}
	return base, nil
}
