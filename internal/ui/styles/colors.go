// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/puterchat/internal/settings"
)

// =============================================================================
// PALETTE
// =============================================================================

// Palette is the set of colors a chat theme is drawn with.
type Palette struct {
	Accent    lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color

	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Surface   lipgloss.Color
	Border    lipgloss.Color

	UserFg      lipgloss.Color
	UserBg      lipgloss.Color
	AssistantFg lipgloss.Color
	AssistantBg lipgloss.Color

	// Glamour names the markdown style used for assistant replies.
	Glamour string
}

// =============================================================================
// THEME PALETTES
// =============================================================================

// Light suits terminals with a light background.
var Light = Palette{
	Accent: "#7C3AED", Secondary: "#0891B2", Success: "#059669", Error: "#E11D48", Warning: "#D97706",
	Text: "#1F2937", TextMuted: "#6B7280", Surface: "#F5F5F5", Border: "#D4D4D4",
	UserFg: "#0C4A6E", UserBg: "#E0F2FE", AssistantFg: "#1F2937", AssistantBg: "#FAFAFA",
	Glamour: "light",
}

// Dark is the default.
var Dark = Palette{
	Accent: "#A78BFA", Secondary: "#22D3EE", Success: "#34D399", Error: "#FB7185", Warning: "#FBBF24",
	Text: "#CDD6F4", TextMuted: "#6C7086", Surface: "#181825", Border: "#45475A",
	UserFg: "#CDD6F4", UserBg: "#1E3A5F", AssistantFg: "#CDD6F4", AssistantBg: "#1E1E2E",
	Glamour: "dark",
}

// Sunset uses warm oranges and plums.
var Sunset = Palette{
	Accent: "#FF8C42", Secondary: "#FF5D8F", Success: "#9BE564", Error: "#FF4D4D", Warning: "#FFD166",
	Text: "#FDE8D7", TextMuted: "#D9A48F", Surface: "#2B1B2F", Border: "#6B3E5E",
	UserFg: "#FDE8D7", UserBg: "#5A2D4A", AssistantFg: "#FDE8D7", AssistantBg: "#3D2540",
	Glamour: "dracula",
}

// Grey is a low-saturation scheme.
var Grey = Palette{
	Accent: "#C0C0C0", Secondary: "#A0A0A0", Success: "#B8D8B8", Error: "#FF6B6B", Warning: "#E0C080",
	Text: "#E0E0E0", TextMuted: "#8A8A8A", Surface: "#2E2E2E", Border: "#5A5A5A",
	UserFg: "#F0F0F0", UserBg: "#474747", AssistantFg: "#E0E0E0", AssistantBg: "#3A3A3A",
	Glamour: "notty",
}

// Multicolored gives every role its own hue.
var Multicolored = Palette{
	Accent: "#FF4FD8", Secondary: "#4FFFE0", Success: "#7CFF4F", Error: "#FF5555", Warning: "#FFE14F",
	Text: "#F5F5FF", TextMuted: "#A8A8E0", Surface: "#101030", Border: "#5F5FD0",
	UserFg: "#F5F5FF", UserBg: "#1E4D5C", AssistantFg: "#F5F5FF", AssistantBg: "#3A1F5C",
	Glamour: "tokyo-night",
}

// PaletteFor returns the palette for a theme. Unknown themes get Dark.
func PaletteFor(t settings.Theme) Palette {
	switch t {
	case settings.ThemeLight:
		return Light
	case settings.ThemeSunset:
		return Sunset
	case settings.ThemeGrey:
		return Grey
	case settings.ThemeMulticolored:
		return Multicolored
	}
	return Dark
}
