// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a config file when it changes and hands each valid
// result to a callback. Invalid edits are logged and skipped.
type Watcher struct {
	path     string
	onChange func(*Config)
	log      zerolog.Logger

	// Debounce delays reloads after the last event (default: DefaultDebounce).
	Debounce time.Duration
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, onChange func(*Config), log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		onChange: onChange,
		log:      log.With().Str("component", "config").Str("path", path).Logger(),
		Debounce: DefaultDebounce,
	}
}

// Run watches until ctx is done. The directory is watched rather than the
// file so that editors which replace the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.log.Debug().Msg("watching config")

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("ignoring config change")
		return
	}
	w.log.Info().Msg("config reloaded")
	w.onChange(cfg)
}
