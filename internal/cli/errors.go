// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/puterchat/internal/config"
	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/provider/puter"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/tools"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command failure with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(name, usage string) error {
	return &ValidationError{Field: name, Reason: "is required", Example: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse("", err)
		resp.ErrorType = errorType(err)
		_ = resp.Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", errorStyle.Render("[ERROR]"), err.Error())
}

func errorType(err error) string {
	var (
		cmdErr *CommandError
		valErr *ValidationError
		cfgErr config.ValidationErrors
	)
	switch {
	case errors.As(err, &valErr):
		return "validation_error"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &cmdErr):
		return "command_error"
	}
	return "generic_error"
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		valErr  *ValidationError
		cfgErrs config.ValidationErrors
		cfgErr  config.ValidationError
		ctrlErr *controller.ValidationError
	)
	switch {
	case errors.As(err, &valErr), errors.As(err, &ctrlErr):
		return ExitUsageError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, puter.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, puter.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case isConnectionError(err):
		return ExitNetworkError
	case errors.Is(err, storage.ErrTranscriptNotFound),
		errors.Is(err, tools.ErrUnknownTool),
		errors.Is(err, controller.ErrUnknownModel):
		return ExitNotFoundError
	}
	return ExitGeneralError
}

func isConnectionError(err error) bool {
	var ce *puter.ClientError
	return errors.As(err, &ce) && ce.Type == puter.ErrTypeConnection
}
