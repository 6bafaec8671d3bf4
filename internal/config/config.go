// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ollama-chat/internal/chat"
	"github.com/jeranaias/ollama-chat/internal/ollama"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollama-chat configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Generation GenerationConfig `toml:"generation"`
	Storage    StorageConfig    `toml:"storage"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
	UI         UIConfig         `toml:"ui"`
}

// APIConfig locates the Ollama server.
type APIConfig struct {
	// URL is the API base, including the /api suffix.
	URL string `toml:"url"`

	// Timeout is a Go duration string, e.g. "120s".
	Timeout string `toml:"timeout"`
}

// GenerationConfig holds the defaults for new chats.
type GenerationConfig struct {
	Model        string  `toml:"model"`
	Temperature  float64 `toml:"temperature"`
	MaxTokens    int     `toml:"max_tokens"`
	SystemPrompt string  `toml:"system_prompt"`
}

// StorageConfig selects the saved-chat backend.
type StorageConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	MaxChats int    `toml:"max_chats"`
}

// ServerConfig configures `ollama-chat serve`.
type ServerConfig struct {
	Addr         string  `toml:"addr"`
	RateLimit    float64 `toml:"rate_limit"`
	RateBurst    int     `toml:"rate_burst"`
	MaxBodyBytes int64   `toml:"max_body_bytes"`
}

// LogConfig configures zap and file rotation.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// UIConfig holds terminal presentation settings.
type UIConfig struct {
	Markdown bool `toml:"markdown"`
	WordWrap int  `toml:"word_wrap"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultTimeout bounds one chat request; local models can be slow.
const DefaultTimeout = 120 * time.Second

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:     ollama.DefaultBaseURL,
			Timeout: DefaultTimeout.String(),
		},
		Generation: GenerationConfig{
			Temperature: chat.DefaultTemperature,
			MaxTokens:   chat.DefaultMaxTokens,
		},
		Storage: StorageConfig{
			Backend:  "files",
			MaxChats: 500,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			RateLimit:    5,
			RateBurst:    20,
			MaxBodyBytes: 4 << 20,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UIConfig{
			Markdown: true,
			WordWrap: 100,
		},
	}
}

// ChatDefaults converts the generation section into session defaults.
func (c *Config) ChatDefaults() chat.GenerationConfig {
	return chat.GenerationConfig{
		Model:        c.Generation.Model,
		Temperature:  c.Generation.Temperature,
		MaxTokens:    c.Generation.MaxTokens,
		SystemPrompt: c.Generation.SystemPrompt,
	}
}

// RequestTimeout parses API.Timeout, falling back to DefaultTimeout.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.ollama-chat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ollama-chat"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ChatsDir returns the storage directory, defaulting to ~/.ollama-chat/chats.
func (c *Config) ChatsDir() string {
	if c.Storage.Dir != "" {
		return expandHome(c.Storage.Dir)
	}
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ollama-chat", "chats")
	}
	return filepath.Join(dir, "chats")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ensureSecurePermissions tightens the config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load resolves configuration from path (or the default location when
// empty), a .env file in the working directory and the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Existing environment wins over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys the file omits keep their current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys ignored: %s\n", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults restores zero values a partial file may have cleared.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.API.URL == "" {
		cfg.API.URL = d.API.URL
	}
	if cfg.API.Timeout == "" {
		cfg.API.Timeout = d.API.Timeout
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = d.Storage.Backend
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = d.Server.RateBurst
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
}

// ApplyEnvOverrides applies environment variables on top of the file.
func (c *Config) ApplyEnvOverrides() {
	// OLLAMA_API_URL
	if v := os.Getenv("OLLAMA_API_URL"); v != "" {
		c.API.URL = v
	}

	// OLLAMA_CHAT_MODEL
	if v := os.Getenv("OLLAMA_CHAT_MODEL"); v != "" {
		c.Generation.Model = v
	}

	// OLLAMA_CHAT_LOG_LEVEL
	if v := os.Getenv("OLLAMA_CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	// OLLAMA_CHAT_STORAGE
	if v := os.Getenv("OLLAMA_CHAT_STORAGE"); v != "" {
		c.Storage.Backend = v
	}

	// PORT (container platforms)
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			c.Server.Addr = "0.0.0.0:" + v
		}
	}
}

// =============================================================================
// SAVING
// =============================================================================

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# ollama-chat configuration file")
	fmt.Fprintln(file, "# Generated by ollama-chat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every failed check.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

var (
	validBackends  = map[string]bool{"files": true, "file": true, "json": true, "sqlite": true, "sqlite3": true, "db": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// Validate checks ranges and formats. It returns ValidateErrors or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{"api.url", fmt.Sprintf("must be an http(s) URL, got %q", c.API.URL)})
	}
	if d, err := time.ParseDuration(c.API.Timeout); err != nil || d <= 0 {
		errs = append(errs, ValidationError{"api.timeout", fmt.Sprintf("must be a positive duration, got %q", c.API.Timeout)})
	}

	if chat.ValidateTemperature(c.Generation.Temperature) != nil {
		errs = append(errs, ValidationError{"generation.temperature", "must be between 0.0 and 1.0"})
	}
	if chat.ValidateMaxTokens(c.Generation.MaxTokens) != nil {
		errs = append(errs, ValidationError{"generation.max_tokens", "must be a positive integer"})
	}

	if !validBackends[strings.ToLower(c.Storage.Backend)] {
		errs = append(errs, ValidationError{"storage.backend", fmt.Sprintf("must be files or sqlite, got %q", c.Storage.Backend)})
	}
	if c.Storage.MaxChats < 0 {
		errs = append(errs, ValidationError{"storage.max_chats", "must not be negative"})
	}

	if c.Server.RateLimit < 0 || math.IsNaN(c.Server.RateLimit) {
		errs = append(errs, ValidationError{"server.rate_limit", "must not be negative"})
	}
	if c.Server.RateBurst < 1 {
		errs = append(errs, ValidationError{"server.rate_burst", "must be at least 1"})
	}
	if c.Server.MaxBodyBytes < 1024 {
		errs = append(errs, ValidationError{"server.max_body_bytes", "must be at least 1024"})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", c.Log.Level)})
	}

	if c.UI.WordWrap < 0 {
		errs = append(errs, ValidationError{"ui.word_wrap", "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET / SET BY KEY
// =============================================================================

// Get returns the value at a dotted key such as "generation.temperature".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a dotted key. String values are converted to the field type.
// The result is validated; on failure the old value is restored.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}

	old := reflect.New(field.Type()).Elem()
	old.Set(field)
	if err := setFieldValue(field, value); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		field.Set(old)
		return err
	}
	return nil
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case to the Go field name ("max_tokens" -> "MaxTokens").
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.ToLower(strVal))
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("nil value")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys lists every settable dotted key.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tomlName(section)+"."+tomlName(section.Type.Field(j)))
		}
	}
	sort.Strings(keys)
	return keys
}

func tomlName(f reflect.StructField) string {
	if tag := f.Tag.Get("toml"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return strings.ToLower(f.Name)
}
