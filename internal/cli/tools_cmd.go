// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/puterchat/internal/tools"
)

// HandleTools runs "tools list|enable|disable|schema". Changes are stored
// with the other preferences.
func HandleTools(_ context.Context, app *App, s Streams, args Args) error {
	p := NewArgParser(args.Raw, "json")
	jsonMode := args.JSON || p.BoolFlag("json")
	ctrl := app.Controller

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		return printTools(s, ctrl.Tools(), ctrl.Settings().FunctionCallingEnabled, jsonMode)

	case "enable", "disable":
		id := p.Positional(1)
		if id == "" {
			return ErrMissingArgument("tool id", "puterchat tools "+sub+" search")
		}
		t, err := ctrl.ToggleTool(id, sub == "enable")
		if err != nil {
			return NewCommandError("tools", sub, err)
		}
		if jsonMode {
			return NewJSONResponse("tools "+sub, ToolData{ID: t.ID, Name: t.Name, Description: t.Description, Enabled: t.Enabled}).Write(s.Out)
		}
		if !args.Quiet {
			fmt.Fprintf(s.Out, "%s %s\n", renderKV(t.Name, enabledLabel(t.Enabled)), dimStyle.Render("("+t.ID+")"))
		}
		return nil

	case "schema":
		schemas := ctrl.Tools().Schemas()
		if schemas == nil {
			schemas = []tools.Schema{}
		}
		return NewJSONResponse("tools schema", schemas).Write(s.Out)

	default:
		return NewValidationError("tools subcommand", sub, "must be list, enable, disable or schema")
	}
}

func printTools(s Streams, set tools.Set, functions, jsonMode bool) error {
	rows := ToolsData(set)
	if jsonMode {
		return NewJSONResponse("tools list", rows).Write(s.Out)
	}
	fmt.Fprintln(s.Out, titleStyle.Render("Tools"))
	for _, t := range rows {
		fmt.Fprintf(s.Out, "  %-12s %-4s %s\n", t.ID, enabledLabel(t.Enabled), dimStyle.Render(t.Description))
	}
	if !functions {
		fmt.Fprintln(s.Out, warningStyle.Render("Function calling is off; enable it with: puterchat config set chat.function_calling true"))
	}
	return nil
}
