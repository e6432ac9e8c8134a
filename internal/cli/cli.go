// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdServe
	CmdConfig
	CmdTools
	CmdExport
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:     "tui",
	CmdChat:    "chat",
	CmdAsk:     "ask",
	CmdServe:   "serve",
	CmdConfig:  "config",
	CmdTools:   "tools",
	CmdExport:  "export",
	CmdVersion: "version",
	CmdHelp:    "help",
}

func (c Command) String() string {
	return commandNames[c]
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Provider   string
	Model      string
	LogLevel   string
	JSON       bool
	Quiet      bool

	// Ephemeral keeps preferences in memory instead of the database.
	Ephemeral bool

	// Command arguments after global flags are removed.
	Raw []string
}

// Streams are the process's standard files.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

const usageText = `puterchat - chat with hosted AI models from the terminal

Usage:
  puterchat                       Start the TUI (when stdin is a terminal)
  puterchat tui                   Start the TUI
  puterchat chat                  Line-mode chat with history
  puterchat ask "question"        Ask a single question
  puterchat ask --image "a fox"   Generate an image
  puterchat serve [--addr A]      Run the HTTP and websocket bridge
  puterchat config [show|get|set|path|init]
  puterchat tools [list|enable|disable|schema]
  puterchat export [id] [--format markdown|html|json] [--output dir]
  puterchat version

Global flags:
  --config PATH       Config file (default: ~/.puterchat/config.toml)
  --provider KIND     puter or mock
  -m, --model ID      Model for this run
  --log-level LEVEL   debug, info, warn, error
  --json              JSON output where supported
  -q, --quiet         Less output
  --ephemeral         Do not persist preferences

Piped input runs "ask" with stdin as the question:
  echo "explain goroutines" | puterchat

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "puterchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv into a command and its arguments. With no command the
// TUI is chosen when stdin is a terminal and ask otherwise.
func Parse(argv []string, interactive bool) (Command, Args, error) {
	rest, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(rest) == 0 {
		if interactive {
			return CmdTUI, args, nil
		}
		return CmdAsk, args, nil
	}

	name := strings.ToLower(rest[0])
	args.Raw = rest[1:]

	switch name {
	case "tui", "ui":
		return CmdTUI, args, nil
	case "chat", "repl":
		return CmdChat, args, nil
	case "ask", "a":
		return CmdAsk, args, nil
	case "serve", "server":
		return CmdServe, args, nil
	case "config", "cfg":
		return CmdConfig, args, nil
	case "tools", "tool":
		return CmdTools, args, nil
	case "export":
		return CmdExport, args, nil
	case "version", "-v", "--version":
		return CmdVersion, args, nil
	case "help", "-h", "--help":
		return CmdHelp, args, nil
	}

	// Anything else is a question.
	args.Raw = rest
	return CmdAsk, args, nil
}

// parseGlobalFlags removes global flags from argv.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		rest []string
		args Args
	)

	value := func(i *int, name string) (string, error) {
		if *i+1 >= len(argv) {
			return "", NewValidationError(name, "", "requires a value")
		}
		*i++
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, inline, hasInline := strings.Cut(arg, "=")

		var dst *string
		switch name {
		case "--config":
			dst = &args.ConfigPath
		case "--provider":
			dst = &args.Provider
		case "-m", "--model":
			dst = &args.Model
		case "--log-level":
			dst = &args.LogLevel
		case "--json":
			args.JSON = true
			continue
		case "-q", "--quiet":
			args.Quiet = true
			continue
		case "--ephemeral":
			args.Ephemeral = true
			continue
		default:
			rest = append(rest, arg)
			continue
		}

		if hasInline {
			*dst = inline
			continue
		}
		v, err := value(&i, name)
		if err != nil {
			return nil, args, err
		}
		*dst = v
	}
	return rest, args, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes argv and returns the process exit code.
func Run(ctx context.Context, argv []string, s Streams) int {
	configureColor(s.Out)

	cmd, args, err := Parse(argv, IsTerminal(s.In))
	if err != nil {
		DisplayError(s.Err, err, args.JSON)
		return ExitUsageError
	}

	switch cmd {
	case CmdHelp:
		PrintUsage(s.Out)
		return ExitSuccess
	case CmdVersion:
		return finish(s, args, HandleVersion(s, args))
	case CmdConfig:
		return finish(s, args, HandleConfig(s, args))
	}

	app, err := NewApp(args, AppOptions{LogToFile: cmd == CmdTUI, Stderr: s.Err})
	if err != nil {
		return finish(s, args, err)
	}
	defer app.Close()

	switch cmd {
	case CmdTUI:
		err = HandleTUI(ctx, app)
	case CmdChat:
		err = HandleChat(ctx, app, s)
	case CmdAsk:
		err = HandleAsk(ctx, app, s, args)
	case CmdServe:
		err = HandleServe(ctx, app, args)
	case CmdTools:
		err = HandleTools(ctx, app, s, args)
	case CmdExport:
		err = HandleExport(app, s, args)
	}
	return finish(s, args, err)
}

func finish(s Streams, args Args, err error) int {
	if err == nil {
		return ExitSuccess
	}
	DisplayError(s.Err, err, args.JSON)
	return GetExitCode(err)
}
