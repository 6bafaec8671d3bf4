// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollama-chat.
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Command-line flags (applied by the caller)
//   - Environment variables (OLLAMA_API_URL, OLLAMA_CHAT_*, PORT)
//   - A .env file in the working directory
//   - ~/.ollama-chat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := ollama.NewClient(cfg.API.URL)
//
// Watch reloads the file on change; serve mode uses it to pick up new
// generation defaults without a restart.
package config
