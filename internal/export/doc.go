// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders chats as JSON chat files, Markdown or standalone
// HTML pages.
//
// # Usage
//
//	e, err := export.ForFormat("markdown", nil)
//	if err != nil {
//	    return err
//	}
//	blob, err := e.Export(session.ToFile())
//
// The JSON format is the chat file itself, so its output can be loaded
// again. Markdown and HTML are for reading.
package export
