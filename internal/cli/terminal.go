// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when the width cannot be detected.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest wrap width used.
	MinTerminalWidth = 40
)

// fder is implemented by *os.File.
type fder interface {
	Fd() uintptr
}

// IsTerminal reports whether v is a terminal file. Anything that is not an
// *os.File, such as a test buffer, is not.
func IsTerminal(v any) bool {
	f, ok := v.(fder)
	return ok && term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of v, or DefaultTerminalWidth.
func TerminalWidth(v any) int {
	f, ok := v.(fder)
	if !ok {
		return DefaultTerminalWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultTerminalWidth
	}
	if w < MinTerminalWidth {
		return MinTerminalWidth
	}
	return w
}

// configureColor picks the lipgloss color profile for out. NO_COLOR and
// non-terminal output disable color; FORCE_COLOR enables it.
func configureColor(out any) {
	switch {
	case os.Getenv("FORCE_COLOR") != "":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case os.Getenv("NO_COLOR") != "" || !IsTerminal(out):
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	}
}
