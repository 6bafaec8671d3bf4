// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant Markdown into terminal output (glamour)
// or sanitized HTML for the web client (goldmark, chroma, bluemonday).
package render
