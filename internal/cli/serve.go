// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ollama-chat/internal/config"
	"github.com/jeranaias/ollama-chat/internal/logging"
	"github.com/jeranaias/ollama-chat/internal/server"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web chat",
		Long: `Serve the browser chat and its JSON API.

Generation defaults and the log level are reloaded when the config file
changes. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	log, err := logging.New(logging.Options{
		Level:         a.cfg.Log.Level,
		Console:       true,
		FileName:      a.cfg.Log.File,
		MaxFileSizeMB: a.cfg.Log.MaxSizeMB,
		MaxBackups:    a.cfg.Log.MaxBackups,
		MaxAgeDays:    a.cfg.Log.MaxAgeDays,
	})
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

	srv := server.New(server.Options{
		Addr:         a.cfg.Server.Addr,
		Defaults:     a.cfg.ChatDefaults(),
		RateLimit:    a.cfg.Server.RateLimit,
		RateBurst:    a.cfg.Server.RateBurst,
		MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
	}, a.backend(), store, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("ollama-chat web front-end",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("api", a.cfg.API.URL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if path, err := a.configPath(); err == nil {
		g.Go(func() error {
			return a.watchConfig(gctx, path, srv, log)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchConfig applies edits to the generation defaults and the log level.
// Other settings need a restart.
func (a *app) watchConfig(ctx context.Context, path string, srv *server.Server, log *logging.Logger) error {
	err := config.Watch(ctx, path, config.DefaultDebounce, func(cfg *config.Config, err error) {
		if err != nil {
			log.Warn("config reload rejected, keeping current settings", zap.String("path", path), zap.Error(err))
			return
		}
		if err := srv.SetDefaults(cfg.ChatDefaults()); err != nil {
			log.Warn("config reload rejected, keeping current settings", zap.String("path", path), zap.Error(err))
			return
		}
		if a.logLevel == "" {
			if err := log.SetLevel(cfg.Log.Level); err != nil {
				log.Warn("invalid log level in config", zap.Error(err))
			}
		}
		log.Info("config reloaded", zap.String("path", path))
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		// Serving continues without reloads.
		log.Warn("config watcher stopped", zap.Error(err))
	}
	return nil
}
