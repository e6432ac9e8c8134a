// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jeranaias/puterchat/internal/config"
)

// HandleConfig runs "config show|get|set|path|init". It works without a
// provider so a broken config can still be inspected and fixed.
func HandleConfig(s Streams, args Args) error {
	p := NewArgParser(args.Raw, "force", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		return configShow(s, args, jsonMode)
	case "get":
		return configGet(s, args, p.Positional(1), jsonMode)
	case "set":
		return configSet(s, args, p.Positional(1), p.Positional(2), jsonMode)
	case "path":
		return configPath(s, args, jsonMode)
	case "init":
		return configInit(s, args, p.BoolFlag("force"), jsonMode)
	case "keys":
		keys := config.AllKeys()
		sort.Strings(keys)
		if jsonMode {
			return NewJSONResponse("config keys", keys).Write(s.Out)
		}
		for _, k := range keys {
			fmt.Fprintln(s.Out, k)
		}
		return nil
	default:
		return NewValidationError("config subcommand", sub, "must be show, get, set, path, keys or init")
	}
}

// editPath is the file "config set" and "config init" write.
func editPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	if path := config.FindPath(); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func configShow(s Streams, args Args, jsonMode bool) error {
	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if jsonMode {
		// Round-trip through String so tokens stay redacted.
		return NewJSONResponse("config show", json.RawMessage(cfg.String())).Write(s.Out)
	}
	fmt.Fprintln(s.Out, cfg.String())
	return nil
}

func configGet(s Streams, args Args, key string, jsonMode bool) error {
	if key == "" {
		return ErrMissingArgument("key", "puterchat config get chat.default_model")
	}
	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	v, err := cfg.Get(key)
	if err != nil {
		return NewValidationError("key", key, err.Error())
	}
	if key == "provider.token" || key == "server.token" {
		if str, _ := v.(string); str != "" {
			v = "[REDACTED]"
		}
	}
	if jsonMode {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": v}).Write(s.Out)
	}
	fmt.Fprintln(s.Out, v)
	return nil
}

func configSet(s Streams, args Args, key, value string, jsonMode bool) error {
	if key == "" || value == "" {
		return ErrMissingArgument("key and value", "puterchat config set chat.theme sunset")
	}
	path, err := editPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("key", key, err.Error())
	}

	check := cfg.Clone()
	check.SetDefaults()
	if err := check.Validate(); err != nil {
		return err
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return err
	}

	if jsonMode {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": value, "path": path}).Write(s.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(s.Out, "%s %s = %s\n", successStyle.Render("[OK]"), key, value)
	}
	return nil
}

func configPath(s Streams, args Args, jsonMode bool) error {
	path, err := editPath(args)
	if err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	exists := statErr == nil
	if jsonMode {
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Write(s.Out)
	}
	fmt.Fprintln(s.Out, path)
	return nil
}

func configInit(s Streams, args Args, force, jsonMode bool) error {
	path, err := editPath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewValidationError("config", path, "already exists (use --force to overwrite)")
	}
	if err := config.SaveTo(config.Default(), path); err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("config init", map[string]any{"path": path}).Write(s.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(s.Out, "%s wrote %s\n", successStyle.Render("[OK]"), path)
	}
	return nil
}
