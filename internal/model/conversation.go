// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// MaxHistoryMessages bounds how many prior messages are sent as context
// with a chat request.
const MaxHistoryMessages = 40

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message log. Insertion order is both display
// order and causal order: an assistant reply sits directly after the user
// message that triggered it.
//
// Conversation is not safe for concurrent use; its owner serializes access.
type Conversation struct {
	// Identity
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `json:"messages"`
}

// NewConversation creates a new conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + NewID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds messages to the end of the log, in order.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.touch()
	c.updateTitle()
}

// Index returns the position of the message with the given ID, or -1.
func (c *Conversation) Index(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Get returns a copy of the message with the given ID.
func (c *Conversation) Get(id string) (Message, bool) {
	i := c.Index(id)
	if i < 0 {
		return Message{}, false
	}
	return c.Messages[i], true
}

// Update applies fn to the stored message in place. It reports false when
// the message no longer exists.
func (c *Conversation) Update(id string, fn func(*Message)) bool {
	i := c.Index(id)
	if i < 0 {
		return false
	}
	fn(&c.Messages[i])
	c.touch()
	return true
}

// Remove removes a single message by ID.
func (c *Conversation) Remove(id string) bool {
	i := c.Index(id)
	if i < 0 {
		return false
	}
	c.removeRange(i, i+1)
	return true
}

// DeleteExchange removes the message with the given ID together with its
// partner: an assistant message takes the user message directly before it,
// and a user message takes the assistant message directly after it.
// It returns the IDs removed, in log order, or nil if id is unknown.
func (c *Conversation) DeleteExchange(id string) []string {
	i := c.Index(id)
	if i < 0 {
		return nil
	}

	start, end := i, i+1
	switch c.Messages[i].Role {
	case RoleAssistant:
		if i > 0 && c.Messages[i-1].Role == RoleUser {
			start = i - 1
		}
	case RoleUser:
		if i+1 < len(c.Messages) && c.Messages[i+1].Role == RoleAssistant {
			end = i + 2
		}
	}

	removed := make([]string, 0, end-start)
	for _, msg := range c.Messages[start:end] {
		removed = append(removed, msg.ID)
	}
	c.removeRange(start, end)
	return removed
}

// ResendCandidate returns the prompt text that would regenerate the given
// message: a user message's own content, or for an assistant message the
// content of the user message directly before it.
func (c *Conversation) ResendCandidate(id string) (string, bool) {
	i := c.Index(id)
	if i < 0 {
		return "", false
	}
	switch c.Messages[i].Role {
	case RoleUser:
		return c.Messages[i].Content, true
	case RoleAssistant:
		if i > 0 && c.Messages[i-1].Role == RoleUser {
			return c.Messages[i-1].Content, true
		}
	}
	return "", false
}

// History returns the text messages usable as request context: complete,
// non-empty and not image artifacts. At most MaxHistoryMessages of the
// most recent are returned.
func (c *Conversation) History() []Message {
	out := make([]Message, 0, len(c.Messages))
	for _, msg := range c.Messages {
		if msg.Kind == KindImage || msg.State != StateComplete || msg.Content == "" {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > MaxHistoryMessages {
		out = out[len(out)-MaxHistoryMessages:]
	}
	return out
}

// Snapshot returns a copy of the message slice.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// Clear removes all messages from the conversation.
func (c *Conversation) Clear() {
	c.Messages = make([]Message, 0)
	c.Title = ""
	c.touch()
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastUserMessage returns the most recent user message.
func (c *Conversation) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

func (c *Conversation) removeRange(start, end int) {
	c.Messages = append(c.Messages[:start], c.Messages[end:]...)
	c.touch()
}

func (c *Conversation) touch() {
	c.UpdatedAt = time.Now()
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle auto-generates a title from the first user message if not set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Kind == KindText {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = c.Snapshot()
	return &clone
}
