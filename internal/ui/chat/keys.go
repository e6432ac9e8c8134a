// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Send       key.Binding
	Newline    key.Binding
	ToggleMode key.Binding

	SelectPrev key.Binding
	SelectNext key.Binding
	Deselect   key.Binding
	Delete     key.Binding
	Resend     key.Binding
	Speak      key.Binding

	PageUp   key.Binding
	PageDown key.Binding

	Models   key.Binding
	Tools    key.Binding
	Settings key.Binding
	Export   key.Binding
	Clear    key.Binding
	SignIn   key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("M-Enter", "new line"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "chat/image mode"),
		),
		SelectPrev: key.NewBinding(
			key.WithKeys("alt+up", "ctrl+up"),
			key.WithHelp("M-↑", "select previous"),
		),
		SelectNext: key.NewBinding(
			key.WithKeys("alt+down", "ctrl+down"),
			key.WithHelp("M-↓", "select next"),
		),
		Deselect: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "deselect/close"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete selected"),
		),
		Resend: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "resend selected"),
		),
		Speak: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "speak selected"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "page down"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "models"),
		),
		Tools: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "tools"),
		),
		Settings: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "settings"),
		),
		Export: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "export"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear chat"),
		),
		SignIn: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "sign in"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.ToggleMode, k.Models, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the help overlay, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.ToggleMode, k.PageUp, k.PageDown},
		{k.SelectPrev, k.SelectNext, k.Deselect, k.Delete, k.Resend, k.Speak},
		{k.Models, k.Tools, k.Settings, k.Export, k.Clear, k.SignIn},
		{k.Help, k.Quit},
	}
}

// overlayKeys drive list overlays.
type overlayKeys struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Close  key.Binding
}

func defaultOverlayKeys() overlayKeys {
	return overlayKeys{
		Up:     key.NewBinding(key.WithKeys("up", "k")),
		Down:   key.NewBinding(key.WithKeys("down", "j")),
		Choose: key.NewBinding(key.WithKeys("enter", " ")),
		Close:  key.NewBinding(key.WithKeys("esc", "q")),
	}
}
