// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/logging"
	"github.com/jeranaias/ollama-chat/internal/ollama"
	"github.com/jeranaias/ollama-chat/internal/render"
	"github.com/jeranaias/ollama-chat/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultMaxBodyBytes caps request bodies.
	DefaultMaxBodyBytes = 4 << 20

	// DefaultSessionTTL is how long an untouched session survives.
	DefaultSessionTTL = 24 * time.Hour

	shutdownTimeout = 5 * time.Second
)

// Backend is the part of the Ollama client the server needs.
// *ollama.Client satisfies it.
type Backend interface {
	chat.Completer
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	Version(ctx context.Context) (string, error)
	BaseURL() string
}

// Options configures a Server.
type Options struct {
	Addr         string
	Defaults     chat.GenerationConfig
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
	SessionTTL   time.Duration
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the web front-end: a JSON API over chat sessions plus the
// embedded browser client.
type Server struct {
	opts    Options
	backend Backend
	store   storage.Store
	log     *logging.Logger
	html    *render.HTML
	metrics *Metrics
	limiter *RateLimiter
	router  *chi.Mux

	sessions *registry

	mu       sync.RWMutex
	defaults chat.GenerationConfig
}

// New builds a Server. store may be nil, which disables the chat library
// routes; log may be nil.
func New(opts Options, backend Backend, store storage.Store, log *logging.Logger) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Defaults.MaxTokens == 0 {
		opts.Defaults = chat.DefaultGenerationConfig()
	}
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{
		opts:     opts,
		backend:  backend,
		store:    store,
		log:      log,
		html:     render.NewHTML(),
		metrics:  NewMetrics(),
		limiter:  NewRateLimiter(opts.RateLimit, opts.RateBurst),
		sessions: newRegistry(),
		defaults: opts.Defaults,
	}
	s.setupRoutes()
	return s
}

// Defaults returns the generation settings given to new sessions.
func (s *Server) Defaults() chat.GenerationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaults
}

// SetDefaults replaces the settings for sessions created from now on.
// Existing sessions keep theirs.
func (s *Server) SetDefaults(cfg chat.GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.defaults = cfg
	s.mu.Unlock()
	s.log.Info("generation defaults updated", zap.String("model", cfg.Model), zap.Float64("temperature", cfg.Temperature))
	return nil
}

// Metrics exposes the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		RecoveryMiddleware(s.log.Logger),
		s.log.Middleware,
		s.metrics.Middleware,
		SecurityHeadersMiddleware(),
		middleware.RequestSize(s.opts.MaxBodyBytes),
	)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Get("/", s.handleIndex)
	r.Get("/static/highlight.css", s.handleHighlightCSS)
	r.Handle("/static/*", staticHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.limiter, s.log.Logger, s.metrics.rateLimited.Inc))

		r.Get("/models", s.handleModels)
		r.Post("/chat", s.handleChat)
		r.Get("/version", s.handleVersion)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Post("/import", s.handleImportSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Patch("/config", s.handleSessionConfig)
				r.Post("/messages", s.handleSendMessage)
				r.Post("/clear", s.handleClearSession)
				r.Get("/export", s.handleExportSession)
				r.Post("/save", s.handleSaveSession)
			})
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", s.handleListChats)
			r.Post("/{id}/open", s.handleOpenChat)
			r.Patch("/{id}", s.handleRenameChat)
			r.Delete("/{id}", s.handleDeleteChat)
		})
	})

	s.router = r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.limiter.Run(gctx)
	})

	g.Go(func() error {
		return s.expireSessions(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("gracefully shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to gracefully shutdown HTTP server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) expireSessions(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.sessions.expire(now.Add(-s.opts.SessionTTL)); n > 0 {
				s.metrics.sessions.Set(float64(s.sessions.len()))
				s.log.Debug("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}
