// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat screen for puterchat.

The screen is a Bubble Tea model that renders controller snapshots. It owns
no conversation state: every key press that changes something calls a
controller operation, and the resulting snapshot comes back through a
subscription and is re-rendered.

# Key Types

  - Model: the Bubble Tea model (Init, Update, View)
  - Options: session, export directory, speech language and logger
  - KeyMap: key bindings with short and full help
  - Command: a slash command typed into the input box

# Layout

	┌ header: model, mode, signed-in user ┐
	│ transcript viewport                 │
	│ notice toast                        │
	│ input box                           │
	└ status: key help, stream/fn flags   ┘

Complete assistant replies are rendered as markdown with glamour; replies
still streaming are shown raw with a spinner. Models, tools, settings and
help open as overlays over the transcript.

# Draft Sync

The input box mirrors the controller draft. Typing pushes the text with
SetDraft; drafts set elsewhere (speech input, resend) replace the input
when a snapshot arrives.

# Usage

	m := chat.New(ctrl, chat.Options{Session: sess, Logger: log})
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
*/
package chat
