// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller owns the chat conversation and turns user intents into
// provider calls.
//
// A Controller holds the message log, settings, tool list and selected
// model. Renderers never mutate that state: they call controller methods
// and read immutable snapshots, either on demand or through Subscribe.
//
// # Sending
//
// SendPrompt appends the user message and a pending assistant message in
// one step, publishes, and only then calls the provider. Streamed replies
// are folded in chunk by chunk, each chunk producing a new snapshot.
//
// # Failures
//
// Provider failures mark the pending message failed, emit an error notice
// and return a *CollaboratorError. Nothing is retried.
//
// # Usage
//
//	ctrl, err := controller.New(p, controller.Options{Store: kv, Logger: log})
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	unsubscribe := ctrl.Subscribe(render)
//	defer unsubscribe()
//
//	err = ctrl.SendPrompt(ctx, "Hello!", controller.ModeChat)
package controller
