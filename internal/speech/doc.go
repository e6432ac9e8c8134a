// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech turns recognized speech into draft prompt text.
//
// Recognition itself happens elsewhere (typically in a browser). A
// Recognizer delivers transcripts and a Listener writes each one to the
// draft, leaving the user to review and send it.
package speech
