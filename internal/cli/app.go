// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/config"
	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/logger"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/provider/fake"
	"github.com/jeranaias/puterchat/internal/provider/puter"
	"github.com/jeranaias/puterchat/internal/session"
	"github.com/jeranaias/puterchat/internal/storage"
)

// App holds the collaborators shared by every command that talks to a
// provider.
type App struct {
	Config     *config.Config
	ConfigPath string
	Log        zerolog.Logger

	Provider    provider.Provider
	KV          storage.KV
	Controller  *controller.Controller
	Session     *session.Manager
	Transcripts *storage.TranscriptStore

	closers []io.Closer
}

// AppOptions tunes NewApp for the command being run.
type AppOptions struct {
	// LogToFile sends logs to a file so they do not draw over the TUI.
	LogToFile bool

	// Stderr receives logs otherwise (default: os.Stderr).
	Stderr io.Writer
}

// LoadConfig loads the config named by args, or the default search path,
// and applies flag overrides.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		path = config.FindPath()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if args.Provider != "" {
		cfg.Provider.Kind = args.Provider
	}
	if args.LogLevel != "" {
		cfg.Logging.Level = args.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// NewApp loads configuration and builds the controller and its
// collaborators. Close releases everything it opened.
func NewApp(args Args, opts AppOptions) (*App, error) {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, ConfigPath: path}

	if err := app.openLogger(opts); err != nil {
		return nil, err
	}
	if err := app.build(args); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) openLogger(opts AppOptions) error {
	lc := a.Config.Logging
	file := lc.File
	if file == "" && opts.LogToFile {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		file = filepath.Join(dir, "puterchat.log")
	}

	if file == "" {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		a.Log = logger.New(lc.Level, lc.Format, w)
		return nil
	}

	log, closer, err := logger.NewFile(lc.Level, lc.Format, file)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.Log = log
	a.closers = append(a.closers, closer)
	return nil
}

func (a *App) build(args Args) error {
	cfg := a.Config

	switch cfg.Provider.Kind {
	case config.ProviderMock:
		a.Provider = fake.New()
	default:
		a.Provider = puter.NewClient(&puter.Config{
			BaseURL:           cfg.Provider.BaseURL,
			Token:             cfg.Provider.Token,
			Timeout:           cfg.Provider.Timeout(),
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
			Logger:            a.Log,
		})
	}

	if args.Ephemeral {
		a.KV = storage.NewMemoryKV()
	} else {
		kv, err := storage.OpenSQLiteKV(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open preferences: %w", err)
		}
		a.KV = kv
		a.closers = append(a.closers, kv)
	}

	ctrl, err := controller.New(a.Provider, controller.Options{
		Store:            a.KV,
		Settings:         cfg.Chat.Settings(),
		Model:            cfg.Chat.DefaultModel,
		Language:         cfg.Speech.Language,
		SpeechCacheBytes: cfg.Speech.CacheBytes(),
		SpeechCacheTTL:   cfg.Speech.CacheTTL(),
		Logger:           a.Log,
	})
	if err != nil {
		return err
	}
	a.Controller = ctrl

	if args.Model != "" {
		if err := ctrl.SelectModel(args.Model); err != nil {
			return err
		}
	}

	key, err := session.LoadOrCreateKey(cfg.Storage.SessionKeyFile)
	if err != nil {
		return err
	}
	a.Session = session.NewManager(a.Provider.Auth(), session.Config{
		Store:    a.KV,
		Key:      key,
		Notifier: ctrl,
		Logger:   a.Log,
	})

	store, err := storage.NewTranscriptStore(cfg.Storage.TranscriptsDir)
	if err != nil {
		return err
	}
	a.Transcripts = store

	a.Log.Debug().
		Str("provider", cfg.Provider.Kind).
		Str("model", ctrl.Model()).
		Bool("ephemeral", args.Ephemeral).
		Msg("app ready")
	return nil
}

// SaveTranscript stores the current conversation unless it is empty.
func (a *App) SaveTranscript() (string, error) {
	conv := a.Controller.Transcript()
	if conv.IsEmpty() {
		return "", nil
	}
	return a.Transcripts.Save(storage.NewTranscript(conv, a.Controller.Model()))
}

// Close stops the controller and closes opened resources in reverse order.
func (a *App) Close() error {
	if a.Controller != nil {
		a.Controller.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
