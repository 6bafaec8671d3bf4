// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the application's zap logger: an optional console
// core for server mode and an optional rotated file core, teed together.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSize    = 10 // MB
	defaultMaxAge     = 30 // days
	defaultMaxBackups = 3
)

// Options configures the logger.
type Options struct {
	Level string

	// Console writes human-readable lines to ConsoleWriter (stderr when nil).
	// Terminal UIs leave this off; the screen belongs to the UI.
	Console       bool
	ConsoleWriter io.Writer

	// FileName enables JSON logging to a rotated file.
	FileName      string
	MaxFileSizeMB int
	MaxBackups    int
	MaxAgeDays    int
}

// Logger wraps zap with a level that can change at runtime.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	file  *lumberjack.Logger
}

// ParseLevel maps a config string to a zap level.
func ParseLevel(lvl string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("log level %q not supported", lvl)
}

// EncoderConfig is shared by the console and file cores.
func EncoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderCfg
}

// New builds a logger from opts. With neither console nor file enabled the
// logger discards everything.
func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	atom := zap.NewAtomicLevelAt(lvl)
	encoderCfg := EncoderConfig()

	var cores []zapcore.Core
	l := &Logger{level: atom}

	if opts.Console {
		w := opts.ConsoleWriter
		if w == nil {
			w = os.Stderr
		}
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			atom,
		))
	}

	if opts.FileName != "" {
		// lumberjack is the zap-endorsed rotation library.
		l.file = &lumberjack.Logger{
			Filename:   opts.FileName,
			MaxSize:    orDefault(opts.MaxFileSizeMB, defaultMaxSize),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAge),
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(l.file),
			atom,
		))
	}

	if len(cores) == 0 {
		l.Logger = zap.NewNop()
		return l, nil
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(
		zap.String("goversion", runtime.Version()),
		zap.String("os", runtime.GOOS),
	)
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// SetLevel changes the level of every core.
func (l *Logger) SetLevel(lvl string) error {
	parsed, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	l.level.SetLevel(parsed)
	return nil
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Middleware logs one line per HTTP request.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		latency := time.Since(start)
		fields := []zapcore.Field{
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("took", latency),
			zap.String("remote", r.RemoteAddr),
			zap.String("request", r.RequestURI),
			zap.String("method", r.Method),
		}
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			fields = append(fields, zap.String("request-id", reqID))
		}
		l.Logger.Info("request completed", fields...)
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
