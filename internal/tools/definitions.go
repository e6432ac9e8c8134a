// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when a tool ID is not in the set.
var ErrUnknownTool = errors.New("unknown tool")

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool is a capability the model may call when function calling is enabled.
type Tool struct {
	// ID is the identifier sent to the provider as the function name
	ID string `json:"id"`

	// Name is shown to the user
	Name string `json:"name"`

	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Defaults returns the built-in tools.
func Defaults() []Tool {
	return []Tool{
		{ID: "weather", Name: "Weather", Description: "Get current weather for a location", Enabled: true},
		{ID: "calculator", Name: "Calculator", Description: "Perform calculations", Enabled: false},
		{ID: "search", Name: "Web Search", Description: "Search the web for information", Enabled: false},
	}
}

// =============================================================================
// TOOL SET
// =============================================================================

// Set is a flat, ordered collection of tools unique by ID.
// A Set is a value; mutating methods return a new Set.
type Set struct {
	tools []Tool
}

// NewSet builds a set. A later tool with a duplicate ID replaces the earlier
// one in place. Tools without an ID are dropped.
func NewSet(list []Tool) Set {
	out := make([]Tool, 0, len(list))
	index := make(map[string]int, len(list))
	for _, t := range list {
		if t.ID == "" {
			continue
		}
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}
	return Set{tools: out}
}

// DefaultSet returns a set of the built-in tools.
func DefaultSet() Set {
	return NewSet(Defaults())
}

// List returns a copy of the tools in order.
func (s Set) List() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Len returns the number of tools.
func (s Set) Len() int {
	return len(s.tools)
}

// Get returns the tool with the given ID.
func (s Set) Get(id string) (Tool, bool) {
	for _, t := range s.tools {
		if t.ID == id {
			return t, true
		}
	}
	return Tool{}, false
}

// Enabled returns the enabled subset in order.
func (s Set) Enabled() []Tool {
	var out []Tool
	for _, t := range s.tools {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// WithEnabled returns a copy of the set with tool id switched on or off.
func (s Set) WithEnabled(id string, enabled bool) (Set, Tool, error) {
	list := s.List()
	for i := range list {
		if list[i].ID == id {
			list[i].Enabled = enabled
			return Set{tools: list}, list[i], nil
		}
	}
	return s, Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, id)
}
