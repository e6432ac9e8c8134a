// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// SpinnerConfig holds the frames of a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// LineSpinner is shown while a reply is pending.
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}

// DotsSpinner is shown while an image is generated.
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// Bubble converts the config to a bubbles spinner.
func (c SpinnerConfig) Bubble() spinner.Spinner {
	fps := c.FPS
	if fps <= 0 {
		fps = 10
	}
	return spinner.Spinner{Frames: c.Frames, FPS: time.Second / time.Duration(fps)}
}
