// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/puterchat/internal/ui/chat"
)

// HandleTUI runs the full-screen chat until the user quits or ctx ends.
// A non-empty conversation is saved as a transcript on exit.
func HandleTUI(ctx context.Context, app *App) error {
	m := chat.New(app.Controller, chat.Options{
		Session:  app.Session,
		Language: app.Config.Speech.Language,
		Logger:   app.Log,
	})
	defer m.Close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return err
	}

	if id, err := app.SaveTranscript(); err != nil {
		app.Log.Warn().Err(err).Msg("could not save transcript")
	} else if id != "" {
		app.Log.Info().Str("id", id).Msg("transcript saved")
	}
	return nil
}
