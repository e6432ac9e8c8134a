// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides persistence for puterchat.
//
// Two stores live here:
//
//   - KV: string-keyed preferences (settings, tools, selected model, cached
//     identity). SQLiteKV is the on-disk implementation, MemoryKV the
//     in-process one.
//   - TranscriptStore: saved conversation logs, one JSON file per transcript,
//     written atomically.
//
// # Usage
//
//	kv, err := storage.OpenSQLiteKV(filepath.Join(dir, "puterchat.db"))
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//	err = storage.SetJSON(ctx, kv, "puterChatSettings", settings)
package storage
