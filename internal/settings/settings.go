// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"strings"
)

// =============================================================================
// THEME
// =============================================================================

// Theme names a color scheme.
type Theme string

const (
	ThemeLight        Theme = "light"
	ThemeDark         Theme = "dark"
	ThemeSunset       Theme = "sunset"
	ThemeGrey         Theme = "grey"
	ThemeMulticolored Theme = "multicolored"
)

// Themes lists every theme in display order.
var Themes = []Theme{ThemeLight, ThemeDark, ThemeSunset, ThemeGrey, ThemeMulticolored}

// ParseTheme maps a name to a Theme, case-insensitively. Unknown names
// return ThemeDark and false.
func ParseTheme(name string) (Theme, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "gray" {
		name = "grey"
	}
	for _, t := range Themes {
		if string(t) == name {
			return t, true
		}
	}
	return ThemeDark, false
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings are the user-adjustable chat options.
type Settings struct {
	Theme                  Theme `json:"theme"`
	StreamEnabled          bool  `json:"streamEnabled"`
	FunctionCallingEnabled bool  `json:"functionCallingEnabled"`
}

// Default returns the initial settings.
func Default() Settings {
	return Settings{
		Theme:                  ThemeDark,
		StreamEnabled:          false,
		FunctionCallingEnabled: false,
	}
}

// Normalize returns s with an unknown theme replaced by the default.
func (s Settings) Normalize() Settings {
	s.Theme, _ = ParseTheme(string(s.Theme))
	return s
}

// Enabling reports which capability flags turn on going from old to s.
func (s Settings) Enabling(old Settings) (stream, functions bool) {
	return s.StreamEnabled && !old.StreamEnabled,
		s.FunctionCallingEnabled && !old.FunctionCallingEnabled
}
