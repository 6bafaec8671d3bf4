// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the saved-chat library.
//
// Two backends implement Store: FileStore keeps one chat file per record
// in a directory, SQLiteStore keeps records in an embedded database. Both
// round-trip through the chat file format so any record can be exported
// and reopened with chat.Deserialize.
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Backend: "files", Dir: dir})
//	id, err := store.Save(ctx, storage.FromSession(sess))
//	metas, err := store.List(ctx)
package storage
