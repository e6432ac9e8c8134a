// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/tools"
)

// =============================================================================
// CHAT
// =============================================================================

// Turn is one prior message sent as context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions configures a chat request.
type ChatOptions struct {
	Model string

	// Stream asks for incremental delivery. Providers may ignore it and
	// answer with a complete result.
	Stream bool

	// Tools is nil unless function calling is enabled.
	Tools []tools.Schema

	// History precedes the prompt, oldest first.
	History []Turn
}

// Chatter answers prompts.
type Chatter interface {
	Chat(ctx context.Context, prompt string, opts ChatOptions) (ChatResult, error)
}

// =============================================================================
// OTHER CAPABILITIES
// =============================================================================

// Image is a generated image artifact.
type Image struct {
	// Src is a URL (http(s) or data:) that renders the image.
	Src string `json:"src"`
}

// ImageInput is an image submitted for text extraction.
type ImageInput struct {
	Name string
	MIME string
	Data []byte
}

// Audio is playable speech.
type Audio struct {
	MIME string `json:"mime"`

	// Src is a URL for the audio, usually a data: URL.
	Src string `json:"src"`
}

// User is the signed-in identity.
type User struct {
	UUID           string `json:"uuid"`
	Username       string `json:"username"`
	EmailConfirmed bool   `json:"email_confirmed,omitempty"`
}

// ImageGenerator turns a prompt into an image.
type ImageGenerator interface {
	TextToImage(ctx context.Context, prompt string) (Image, error)
}

// ImageReader extracts text from an image.
type ImageReader interface {
	ImageToText(ctx context.Context, img ImageInput) (string, error)
}

// Speaker converts text to speech. An empty language uses the provider
// default.
type Speaker interface {
	TextToSpeech(ctx context.Context, text, language string) (Audio, error)
}

// Authenticator manages the provider session.
type Authenticator interface {
	IsSignedIn(ctx context.Context) bool
	GetUser(ctx context.Context) (User, error)
	SignIn(ctx context.Context) (User, error)
	SignOut(ctx context.Context) error
}

// Provider is the full hosted AI service.
type Provider interface {
	Chatter
	ImageGenerator
	ImageReader
	Speaker
	Auth() Authenticator
}

// ModelLister is implemented by providers that publish their model list.
type ModelLister interface {
	ListModels(ctx context.Context) ([]model.ModelInfo, error)
}

// TurnsFrom converts messages to request context.
func TurnsFrom(msgs []model.Message) []Turn {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Turn, len(msgs))
	for i, m := range msgs {
		out[i] = Turn{Role: m.Role.String(), Content: m.Content}
	}
	return out
}
