// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the application.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth, Preview: display-width aware text shortening
//   - TitleCase: locale-aware title casing
package util
