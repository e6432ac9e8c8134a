// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/puterchat/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError rejects user input before anything changes. Renderers
// ignore it.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Sentinel errors for easy checking.
var (
	ErrEmptyPrompt      = &ValidationError{Message: "prompt is empty"}
	ErrUnknownMessage   = errors.New("unknown message")
	ErrUnknownModel     = errors.New("unknown model")
	ErrInvalidLanguage  = errors.New("invalid language tag")
	ErrClosed           = errors.New("controller closed")
	ErrUnsupportedImage = &ValidationError{Message: "image is empty"}
)

// ErrStreamProtocolMismatch is logged, never returned, when a streamed
// request is answered with a complete response.
var ErrStreamProtocolMismatch = errors.New("stream response not iterable, falling back to normal response mode")

// Operation names used in CollaboratorError.
const (
	OpChat         = "chat"
	OpTextToImage  = "textToImage"
	OpImageToText  = "imageToText"
	OpTextToSpeech = "textToSpeech"
)

// CollaboratorError wraps a failed provider call. The conversation is left
// in its last state and a notice has been emitted.
type CollaboratorError struct {
	Op        string
	MessageID string
	Err       error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// CapabilityMismatchError reports a model that lacks an enabled capability.
// ApplySettings corrects it by switching to Replacement; SelectModel returns
// it and keeps the current model.
type CapabilityMismatchError struct {
	Model       string
	Capability  model.Capability
	Replacement string
}

func (e *CapabilityMismatchError) Error() string {
	if e.Replacement != "" {
		return fmt.Sprintf("model %s does not support %s, switched to %s", e.Model, e.Capability, e.Replacement)
	}
	return fmt.Sprintf("model %s does not support %s", e.Model, e.Capability)
}

// =============================================================================
// NOTICES
// =============================================================================

// NoticeLevel is the severity of a notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible, transient message. Seq increases by one per
// notice so renderers can tell which they have already shown.
type Notice struct {
	Seq         uint64      `json:"seq"`
	Level       NoticeLevel `json:"level"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Time        time.Time   `json:"time"`
}

// Notice texts.
const (
	titleError          = "Error"
	titleModelChanged   = "Model changed"
	titleMessageDeleted = "Message deleted"

	descStreamSwitch     = "Switched to a streaming-compatible model"
	descFunctionSwitch   = "Switched to a function calling-compatible model"
	descModelUnavailable = "The selected model is no longer available"
	descDeleted          = "Message has been removed from the conversation"
	descChatFailed       = "Failed to get a response. Please try again."
	descImageFailed      = "Failed to generate image. Please try again."
	descExtractFailed    = "Failed to extract text from image."
	descSpeechFailed     = "Failed to convert text to speech."
)
