// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// The client is a thin transport: it knows the wire shapes of the
// /tags, /chat, /version and /pull endpoints and classifies failures into
// TransportError and HTTPError. Conversation state lives in package chat.
//
// # Key Types
//
//   - Client: HTTP client bound to an injected base URL
//   - ChatRequest: request body for a single non-streaming completion
//   - ModelInfo: one entry of the local model catalog
//   - PullProgress: one NDJSON status line of a model download
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL: "http://127.0.0.1:11434/api",
//	})
//	models, err := client.ListModels(ctx)
//	body, err := client.Chat(ctx, req)
//
// Chat returns the raw response body so the caller decides how a reply
// without message content is reported.
package ollama
