// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/puterchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// KIND AND STATE
// =============================================================================

// Kind is the body type of a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// State tracks an assistant message through generation.
//
//	pending -> streaming* -> complete
//	pending -> complete
//
// Any non-terminal state may move to failed instead of complete.
type State string

const (
	StatePending   State = "pending"
	StateStreaming State = "streaming"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// Terminal reports whether no further content will arrive.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a conversation log.
//
// Messages are values. The conversation owns the canonical copy and hands out
// copies, so a Message held by a renderer never changes underneath it.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content  string `json:"content"`
	Kind     Kind   `json:"type"`
	ImageURL string `json:"imageUrl,omitempty"`

	// Model that produced an assistant message
	Model string `json:"model,omitempty"`

	State State `json:"state"`
}

// NewID returns a fresh message identifier.
func NewID() string {
	return uuid.NewString()
}

// NewMessage creates a complete text message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Kind:      KindText,
		Timestamp: time.Now(),
		State:     StateComplete,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewAssistantMessage creates a complete assistant message.
func NewAssistantMessage(content, modelID string) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Model = modelID
	return msg
}

// NewPendingAssistant creates the empty assistant message a chat request
// fills in.
func NewPendingAssistant(modelID string) Message {
	msg := NewAssistantMessage("", modelID)
	msg.State = StatePending
	return msg
}

// NewPendingImage creates the placeholder for an image generation request.
// It has kind image and no ImageURL until the artifact resolves.
func NewPendingImage(caption, modelID string) Message {
	msg := NewPendingAssistant(modelID)
	msg.Content = caption
	msg.Kind = KindImage
	return msg
}

// NewImageMessage creates a complete image message.
func NewImageMessage(role Role, caption, imageURL string) Message {
	msg := NewMessage(role, caption)
	msg.Kind = KindImage
	msg.ImageURL = imageURL
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsPending reports whether the message is still waiting on the provider.
func (m Message) IsPending() bool {
	return m.State == StatePending || m.State == StateStreaming
}

// IsImage reports whether the message carries (or awaits) an image.
func (m Message) IsImage() bool {
	return m.Kind == KindImage
}

// HasImage reports whether an image artifact has resolved.
func (m Message) HasImage() bool {
	return m.Kind == KindImage && m.ImageURL != ""
}

// IsEmpty returns true if the message has no content.
func (m Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Preview returns the content truncated to maxLen runes.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m Message) EstimateTokens() int {
	return (len(m.Content) + 3) / 4
}
