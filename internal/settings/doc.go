// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings defines the user-adjustable chat settings and their
// persistence.
//
// Settings carry the theme and the two capability flags, streaming and
// function calling. Store saves settings, the tool set and the selected
// model under fixed keys of a storage.KV.
package settings
