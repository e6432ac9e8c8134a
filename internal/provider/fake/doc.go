// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fake provides a scripted, in-memory provider.
//
// Tests queue replies (complete text, chunked streams, failures, gated
// pacing) and inspect the calls made. Without a script every call returns
// a canned mock response, which is what the "mock" provider kind runs on.
package fake
