// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles maps chat themes to lipgloss styles for the terminal UI.
//
// # Key Types
//
//   - Palette: Colors for one theme, plus the glamour style for replies
//   - Theme: Prebuilt lipgloss styles and detected terminal capability
//   - SpinnerConfig: Frame sets convertible to bubbles spinners
//
// # Usage
//
//	theme := styles.NewTheme(settings.ThemeSunset)
//	fmt.Println(theme.UserBubble.Render("hello"))
package styles
