// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the command line and runs puterchat's commands.
//
// Every command except help, version and config builds an App: the loaded
// configuration, a zerolog logger, the provider, the preference store, the
// chat controller, the session manager and the transcript store. The
// command then drives the controller as a renderer would.
//
// # Key Types
//
//   - Command: the selected subcommand
//   - Args: global flags plus the remaining arguments
//   - App: shared collaborators, closed by Run
//   - JSONResponse: the envelope printed in --json mode
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	os.Exit(cli.Run(ctx, os.Args[1:], cli.StdStreams()))
//
// # Commands
//
//   - tui: full-screen chat (default on a terminal)
//   - chat: line-mode chat with history
//   - ask: one prompt, from arguments, --file or stdin
//   - serve: HTTP and websocket bridge with config reload
//   - config, tools, export, version, help
//
// Exit codes follow GetExitCode: 2 for bad input, 3 for bad config, 4 when
// not signed in, 5 for network failures, 7 for unknown ids and 8 for
// timeouts.
package cli
