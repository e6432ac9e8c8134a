// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/puterchat/internal/export"
)

// HandleExport lists saved transcripts, or exports one:
//
//	puterchat export
//	puterchat export ID [--format markdown|html|json] [--output DIR] [--theme NAME]
//	puterchat export rm ID
func HandleExport(app *App, s Streams, args Args) error {
	p := NewArgParser(args.Raw, "json", "open")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch id := p.Positional(0); id {
	case "", "list", "ls":
		return listTranscripts(app, s, jsonMode)
	case "rm", "delete":
		target := p.Positional(1)
		if target == "" {
			return ErrMissingArgument("transcript id", "puterchat export rm conv_1a2b3c")
		}
		if err := app.Transcripts.Delete(target); err != nil {
			return err
		}
		if jsonMode {
			return NewJSONResponse("export rm", map[string]string{"id": target}).Write(s.Out)
		}
		if !args.Quiet {
			fmt.Fprintf(s.Out, "%s deleted %s\n", successStyle.Render("[OK]"), target)
		}
		return nil
	default:
		return exportTranscript(app, s, p, id, jsonMode, args.Quiet)
	}
}

func listTranscripts(app *App, s Streams, jsonMode bool) error {
	metas, err := app.Transcripts.List()
	if err != nil {
		return err
	}
	rows := TranscriptsData(metas)
	if jsonMode {
		return NewJSONResponse("export list", rows).Write(s.Out)
	}
	if len(rows) == 0 {
		fmt.Fprintln(s.Out, dimStyle.Render("No saved transcripts"))
		return nil
	}
	fmt.Fprintln(s.Out, titleStyle.Render("Transcripts"))
	for _, r := range rows {
		fmt.Fprintf(s.Out, "  %s  %-40s %s\n", r.ID, r.Summary, dimStyle.Render(fmt.Sprintf("%d messages, %s", r.MessageCount, r.Model)))
	}
	return nil
}

func exportTranscript(app *App, s Streams, p *ArgParser, id string, jsonMode, quiet bool) error {
	t, err := app.Transcripts.Load(id)
	if err != nil {
		return NewCommandError("export", "load "+id, err)
	}

	opts := export.DefaultOptions()
	opts.OutputDir = p.FlagOrDefault("output", opts.OutputDir)
	opts.Theme = p.FlagOrDefault("theme", string(app.Controller.Settings().Theme))
	opts.OpenAfterExport = p.BoolFlag("open")
	format := strings.ToLower(p.FlagOrDefault("format", "markdown"))

	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return NewValidationError("format", format, "must be markdown, html or json")
	}
	path, err := export.ExportToFile(t, exporter, opts)
	if err != nil {
		return err
	}

	if jsonMode {
		return NewJSONResponse("export", ExportData{ID: id, Format: format, Path: path}).Write(s.Out)
	}
	if !quiet {
		fmt.Fprintf(s.Out, "%s %s\n", successStyle.Render("[OK]"), path)
	}
	return nil
}
