// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/ollama-chat/internal/chat"
)

// JSONExporter writes the chat file document, so /load and import can read
// the output back.
type JSONExporter struct{}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export marshals f with indentation. Empty chats are allowed.
func (e *JSONExporter) Export(f chat.File) ([]byte, error) {
	if f.AppVersion == "" {
		f.AppVersion = chat.AppVersion
	}
	if f.Messages == nil {
		f.Messages = []chat.Message{}
	}
	return json.MarshalIndent(f, "", "  ")
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }
