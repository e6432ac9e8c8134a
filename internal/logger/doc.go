// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger builds the zerolog loggers used across puterchat.
//
// Components accept a zerolog.Logger value; the zero value of their options
// uses zerolog.Nop(). The TUI logs to a file so output does not fight the
// alternate screen.
package logger
