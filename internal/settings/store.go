// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/tools"
)

// Preference keys.
const (
	KeySettings = "puterChatSettings"
	KeyTools    = "puterChatTools"
	KeyModel    = "puterChatModel"
)

// Store reads and writes chat preferences through a KV.
// Missing or unreadable values fall back to defaults.
type Store struct {
	kv  storage.KV
	log zerolog.Logger
}

// NewStore wraps kv. A nil kv yields a store that never persists.
func NewStore(kv storage.KV, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// LoadSettings returns the saved settings, or def.
func (s *Store) LoadSettings(ctx context.Context, def Settings) Settings {
	var out Settings
	if !s.load(ctx, KeySettings, &out) {
		return def
	}
	return out.Normalize()
}

// SaveSettings persists settings.
func (s *Store) SaveSettings(ctx context.Context, v Settings) error {
	return s.save(ctx, KeySettings, v)
}

// LoadTools returns the saved tool set, or def.
func (s *Store) LoadTools(ctx context.Context, def tools.Set) tools.Set {
	var list []tools.Tool
	if !s.load(ctx, KeyTools, &list) || len(list) == 0 {
		return def
	}
	return tools.NewSet(list)
}

// SaveTools persists the tool set.
func (s *Store) SaveTools(ctx context.Context, set tools.Set) error {
	return s.save(ctx, KeyTools, set.List())
}

// LoadModel returns the saved model ID, or def.
func (s *Store) LoadModel(ctx context.Context, def string) string {
	var id string
	if !s.load(ctx, KeyModel, &id) || id == "" {
		return def
	}
	return id
}

// SaveModel persists the selected model ID.
func (s *Store) SaveModel(ctx context.Context, id string) error {
	return s.save(ctx, KeyModel, id)
}

func (s *Store) load(ctx context.Context, key string, v any) bool {
	if s == nil || s.kv == nil {
		return false
	}
	err := storage.GetJSON(ctx, s.kv, key, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.log.Warn().Err(err).Str("key", key).Msg("ignoring unreadable preference")
	}
	return false
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	if s == nil || s.kv == nil {
		return nil
	}
	return storage.SetJSON(ctx, s.kv, key, v)
}
