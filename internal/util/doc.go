// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across puterchat.
//
// # Key Functions
//
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: terminal column aware text
//   - IntToString: numeric conversion
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	line := util.TruncateWidth(url, width-4)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
