// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_API_URL", "OLLAMA_CHAT_MODEL", "OLLAMA_CHAT_LOG_LEVEL", "OLLAMA_CHAT_STORAGE", "PORT"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.API.URL != "http://127.0.0.1:11434/api" {
		t.Errorf("API.URL = %q", cfg.API.URL)
	}
	if cfg.RequestTimeout() != DefaultTimeout {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	d := cfg.ChatDefaults()
	if d.Temperature != 0.7 || d.MaxTokens != 1024 || d.Model != "" {
		t.Errorf("ChatDefaults() = %+v", d)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[api]
url = "http://gpu-box:11434/api"

[generation]
model = "llama3:8b"
temperature = 0.2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434/api", cfg.API.URL)
	assert.Equal(t, "llama3:8b", cfg.Generation.Model)
	assert.Equal(t, 0.2, cfg.Generation.Temperature)
	assert.Equal(t, 1024, cfg.Generation.MaxTokens, "omitted keys keep defaults")
	assert.Equal(t, "files", cfg.Storage.Backend)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_API_URL", "http://env-host:1234/api")
	t.Setenv("OLLAMA_CHAT_MODEL", "mistral:7b")
	t.Setenv("OLLAMA_CHAT_STORAGE", "sqlite")
	t.Setenv("OLLAMA_CHAT_LOG_LEVEL", "debug")
	t.Setenv("PORT", "9000")

	cfg, err := Load(writeConfig(t, "[generation]\nmodel = \"llama3:8b\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env-host:1234/api", cfg.API.URL)
	assert.Equal(t, "mistral:7b", cfg.Generation.Model)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, "[generation\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "[generation]\ntemperature = 1.5\n"))
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "generation.temperature", verrs[0].Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"bad url", func(c *Config) { c.API.URL = "localhost:11434" }, "api.url"},
		{"bad timeout", func(c *Config) { c.API.Timeout = "soon" }, "api.timeout"},
		{"zero tokens", func(c *Config) { c.Generation.MaxTokens = 0 }, "generation.max_tokens"},
		{"backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"burst", func(c *Config) { c.Server.RateBurst = 0 }, "server.rate_burst"},
		{"body", func(c *Config) { c.Server.MaxBodyBytes = 10 }, "server.max_body_bytes"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(cfg)
			err := cfg.Validate()
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := Default()
	cfg.Generation.Model = "phi3:mini"
	cfg.Generation.SystemPrompt = "Answer briefly."
	require.NoError(t, SaveTOML(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# ollama-chat configuration file")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("generation.max_tokens")
	require.NoError(t, err)
	assert.Equal(t, 1024, v)

	require.NoError(t, cfg.Set("generation.temperature", "0.3"))
	assert.Equal(t, 0.3, cfg.Generation.Temperature)

	require.NoError(t, cfg.Set("ui.markdown", "false"))
	assert.False(t, cfg.UI.Markdown)

	require.NoError(t, cfg.Set("log.max_size_mb", "50"))
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)

	err = cfg.Set("generation.temperature", "3")
	assert.Error(t, err)
	assert.Equal(t, 0.3, cfg.Generation.Temperature, "rejected value is rolled back")

	_, err = cfg.Get("generation.nope")
	assert.Error(t, err)
	_, err = cfg.Get("generation")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("generation.max_tokens", "many"))
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api.url")
	assert.Contains(t, keys, "generation.system_prompt")
	assert.Contains(t, keys, "server.max_body_bytes")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestWatch_Reloads(t *testing.T) {
	defer goleak.VerifyNone(t)
	clearEnv(t)

	path := writeConfig(t, "[generation]\nmodel = \"llama3:8b\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err == nil {
				reloaded <- cfg
			}
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[generation]\nmodel = \"mistral:7b\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "mistral:7b", cfg.Generation.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	require.NoError(t, <-done)
}
