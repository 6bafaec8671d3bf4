// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the ollama-chat web front-end.
//
// Endpoints:
//   - GET  /                          - Browser client
//   - GET  /api/models                - Installed models
//   - POST /api/chat                  - Stateless chat proxy
//   - GET  /api/version               - App and Ollama versions
//   - /api/sessions/...               - Server-side chat sessions
//   - /api/chats/...                  - Saved chat library
//   - GET  /health, GET /metrics      - Health check and Prometheus metrics
//
// Every session is a chat.Session guarded by its own lock. The lock is
// released while the model works, so slow replies never block reads of
// other sessions.
package server
