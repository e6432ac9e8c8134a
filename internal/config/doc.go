// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for puterchat.
//
// TOML, YAML and JSON files are supported, with defaults for every value,
// environment variable overrides and validation.
//
// # Key Types
//
//   - Config: the complete configuration, one struct per file section
//   - ValidationErrors: every problem Validate found, by field
//   - Watcher: reloads the file on change via fsnotify
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PUTERCHAT_*)
//   - The first of ~/.puterchat/config.toml, config.yaml, config.yml, config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	ctrl, err := controller.New(p, controller.Options{
//		Settings: cfg.Chat.Settings(),
//		Model:    cfg.Chat.DefaultModel,
//	})
package config
