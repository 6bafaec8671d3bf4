// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ollama-chat command tree.
//
// # Commands
//
//   - (default), tui: full-screen chat; falls back to chat without a terminal
//   - chat: line-oriented chat with input history
//   - serve: web front-end
//   - models, pull: inspect and download models
//   - show: render a saved chat file
//   - chats: list, rename, delete and export chats in the library
//   - config: get, set, path and keys
//   - version: app and service versions
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// Every command loads the configuration first. --api-url, --config and
// --log-level apply to all of them.
package cli
