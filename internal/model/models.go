// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// DefaultModel is selected at startup and is the fallback when a capability
// is enabled for a model that lacks it. It must support every capability.
const DefaultModel = "gpt-4o-mini"

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capability is a provider feature a model may support.
type Capability string

const (
	CapChat            Capability = "chat"
	CapStreaming       Capability = "streaming"
	CapFunctionCalling Capability = "function-calling"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a selectable model.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider identifies who serves the model (OpenAI, Anthropic, ...)
	Provider string `json:"provider"`

	Capabilities []Capability `json:"capabilities"`
}

// Supports reports whether the model declares capability c.
func (m ModelInfo) Supports(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// CapabilitiesString returns a comma-separated list of model capabilities.
func (m ModelInfo) CapabilitiesString() string {
	if len(m.Capabilities) == 0 {
		return "chat"
	}
	parts := make([]string, len(m.Capabilities))
	for i, c := range m.Capabilities {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable set of models keyed by ID.
type Catalog struct {
	models map[string]ModelInfo
	order  []string
}

// NewCatalog builds a catalog. Later entries with a duplicate ID replace
// earlier ones but keep the first position.
func NewCatalog(models []ModelInfo) *Catalog {
	c := &Catalog{models: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if _, seen := c.models[m.ID]; !seen {
			c.order = append(c.order, m.ID)
		}
		c.models[m.ID] = m
	}
	return c
}

var chatStreamingTools = []Capability{CapChat, CapStreaming, CapFunctionCalling}
var chatStreaming = []Capability{CapChat, CapStreaming}

// DefaultCatalog returns the built-in model list.
func DefaultCatalog() *Catalog {
	return NewCatalog([]ModelInfo{
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "OpenAI", Capabilities: chatStreamingTools},
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "OpenAI", Capabilities: chatStreamingTools},
		{ID: "gpt-4.5-preview", Name: "GPT-4.5 Preview", Provider: "OpenAI", Capabilities: chatStreamingTools},
		{ID: "claude-3-7-sonnet", Name: "Claude 3.7 Sonnet", Provider: "Anthropic", Capabilities: chatStreamingTools},
		{ID: "claude-3-5-sonnet", Name: "Claude 3.5 Sonnet", Provider: "Anthropic", Capabilities: chatStreamingTools},
		{ID: "mistral-large-latest", Name: "Mistral Large", Provider: "Mistral", Capabilities: chatStreaming},
		{ID: "pixtral-large-latest", Name: "Pixtral Large", Provider: "Mistral", Capabilities: chatStreaming},
		{ID: "codestral-latest", Name: "Codestral", Provider: "Mistral", Capabilities: chatStreaming},
		{ID: "grok-beta", Name: "Grok Beta", Provider: "xAI", Capabilities: chatStreaming},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: "Google", Capabilities: []Capability{CapChat}},
	})
}

// Get looks up a model by ID.
func (c *Catalog) Get(id string) (ModelInfo, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Supports reports whether model id declares capability cap. Unknown models
// support nothing.
func (c *Catalog) Supports(id string, capability Capability) bool {
	m, ok := c.models[id]
	return ok && m.Supports(capability)
}

// Compatible returns the sorted IDs of models supporting capability.
func (c *Catalog) Compatible(capability Capability) []string {
	var ids []string
	for id, m := range c.models {
		if m.Supports(capability) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Fallback returns the model to switch to when the selection must support
// every capability in caps: DefaultModel when it qualifies, otherwise the
// first qualifying model in catalog order. ok is false when none does.
func (c *Catalog) Fallback(caps ...Capability) (id string, ok bool) {
	qualifies := func(m ModelInfo) bool {
		for _, capability := range caps {
			if !m.Supports(capability) {
				return false
			}
		}
		return true
	}
	if m, found := c.models[DefaultModel]; found && qualifies(m) {
		return DefaultModel, true
	}
	for _, id := range c.order {
		if qualifies(c.models[id]) {
			return id, true
		}
	}
	return "", false
}

// List returns every model in catalog order.
func (c *Catalog) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.models[id])
	}
	return out
}

// Len returns the number of models.
func (c *Catalog) Len() int {
	return len(c.order)
}
