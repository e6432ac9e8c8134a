// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders chat transcripts as Markdown, HTML or JSON.
//
// # Key Types
//
//   - Exporter: Converts a storage.Transcript to bytes in one format
//   - Options: Metadata, timestamps, theme and output directory
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, images as ![caption](url)
//   - HTML: Self-contained page styled after the chat theme, code highlighted
//   - JSON: The full transcript, loadable with encoding/json
//
// # Usage
//
//	exp, err := export.ForFormat("html", opts)
//	path, err := export.ExportToFile(transcript, exp, opts)
package export
