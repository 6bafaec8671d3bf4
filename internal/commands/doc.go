// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the
// full-screen and line-mode terminal front-ends.
//
// # Key Types
//
//   - Registry: all known commands and their aliases
//   - ParseResult: parsed command with name and arguments
//   - Completer: tab completion for command names, models and files
//   - Attachments: files waiting to go out with the next message
//
// # Built-in Commands
//
//   - /help: Show available commands
//   - /temp, /tokens, /system: Adjust generation parameters
//   - /model, /models: Switch or list models
//   - /clear, /new: Reset the conversation
//   - /save, /load, /store: Chat files and the saved-chat library
//   - /attach, /detach: Files sent along with the next message
//   - /copy: Last response to the clipboard
//   - /quit: Leave the program
//
// # Usage
//
//	reg := commands.NewRegistry()
//	res := commands.NewParser(reg).Parse(input)
//	if res.IsCommand {
//	    msg, handled, err := commands.ApplySession(sess, res)
//	    ...
//	}
package commands
