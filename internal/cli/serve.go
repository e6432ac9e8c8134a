// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/puterchat/internal/config"
	"github.com/jeranaias/puterchat/internal/server"
	"github.com/jeranaias/puterchat/internal/speech"
)

// speechBuffer holds pushed transcripts waiting for the listener.
const speechBuffer = 16

// HandleServe runs the HTTP bridge with the config watcher and the speech
// listener until ctx is done.
func HandleServe(ctx context.Context, app *App, args Args) error {
	p := NewArgParser(args.Raw)
	cfg := app.Config

	addr := p.FlagOrDefault("addr", cfg.Server.Addr)
	token := p.FlagOrDefault("token", cfg.Server.Token)

	cors := server.DefaultCORSConfig()
	if len(cfg.Server.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	drafts := speech.NewPushRecognizer(speechBuffer)
	srv := server.New(app.Controller, server.Options{
		Addr:        addr,
		Token:       token,
		CORS:        cors,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		Session:     app.Session,
		Drafts:      drafts,
		Transcripts: app.Transcripts,
		Logger:      app.Log,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		return speech.NewListener(drafts, app.Controller, app.Log).Run(ctx)
	})
	if app.ConfigPath != "" {
		w := config.NewWatcher(app.ConfigPath, func(next *config.Config) {
			app.Controller.ApplySettings(next.Chat.Settings())
		}, app.Log)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if token == "" {
		app.Log.Warn().Msg("server token not set; any local client can drive the chat")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
