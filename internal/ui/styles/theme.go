// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/puterchat/internal/settings"
)

// Theme holds the styled components for one chat theme and the terminal's
// color capability.
type Theme struct {
	Name    settings.Theme
	Palette Palette

	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	RoleLabel       lipgloss.Style
	Selected        lipgloss.Style
	Pending         lipgloss.Style
	Failed          lipgloss.Style
	ImageLink       lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusKey      lipgloss.Style
	StatusValue    lipgloss.Style
	ModeChat       lipgloss.Style
	ModeImage      lipgloss.Style

	// ==========================================================================
	// NOTICE AND OVERLAY STYLES
	// ==========================================================================

	NoticeInfo   lipgloss.Style
	NoticeError  lipgloss.Style
	Overlay      lipgloss.Style
	OverlayTitle lipgloss.Style
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style
	On           lipgloss.Style
	Off          lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme builds the styles for name, detecting the terminal profile.
func NewTheme(name settings.Theme) *Theme {
	return NewThemeWithProfile(name, termenv.ColorProfile(), termenv.HasDarkBackground())
}

// NewThemeWithProfile builds the styles for name with a fixed profile.
func NewThemeWithProfile(name settings.Theme, profile termenv.Profile, isDark bool) *Theme {
	name, _ = settings.ParseTheme(string(name))
	t := &Theme{
		Name:         name,
		Palette:      PaletteFor(name),
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the markdown style to render replies with. Terminals
// without color get "notty".
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	return t.Palette.Glamour
}

func (t *Theme) initStyles() {
	p := t.Palette

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Secondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(0, 2)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
	t.HeaderSubtitle = lipgloss.NewStyle().Foreground(p.TextMuted).Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(p.UserFg).
		Background(p.UserBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Secondary).
		Padding(0, 1).
		MarginLeft(4)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(p.AssistantFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(0, 1).
		MarginRight(4)
	t.SystemBubble = lipgloss.NewStyle().
		Foreground(p.TextMuted).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)
	t.RoleLabel = lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
	t.Selected = lipgloss.NewStyle().BorderForeground(p.Warning)
	t.Pending = lipgloss.NewStyle().Foreground(p.TextMuted).Italic(true)
	t.Failed = lipgloss.NewStyle().Foreground(p.Error).Italic(true)
	t.ImageLink = lipgloss.NewStyle().Foreground(p.Secondary).Underline(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(p.Border).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(p.Secondary).Bold(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(p.TextMuted).Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Foreground(p.TextMuted)
	t.StatusValue = lipgloss.NewStyle().Foreground(p.Text).Bold(true)
	t.ModeChat = lipgloss.NewStyle().Foreground(p.Success).Bold(true)
	t.ModeImage = lipgloss.NewStyle().Foreground(p.Warning).Bold(true)

	t.NoticeInfo = lipgloss.NewStyle().
		Foreground(p.Text).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(p.Success).
		PaddingLeft(1)
	t.NoticeError = t.NoticeInfo.BorderForeground(p.Error).Foreground(p.Error)
	t.Overlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Accent).
		Padding(1, 2)
	t.OverlayTitle = lipgloss.NewStyle().Bold(true).Foreground(p.Accent).MarginBottom(1)
	t.ListItem = lipgloss.NewStyle().Foreground(p.Text).PaddingLeft(2)
	t.ListSelected = lipgloss.NewStyle().Foreground(p.Accent).Bold(true).PaddingLeft(0)
	t.On = lipgloss.NewStyle().Foreground(p.Success)
	t.Off = lipgloss.NewStyle().Foreground(p.TextMuted)
	t.Muted = lipgloss.NewStyle().Foreground(p.TextMuted)
}
