// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"github.com/invopop/jsonschema"
)

// =============================================================================
// PROVIDER SCHEMA
// =============================================================================

// Schema is one entry of the provider's tools array.
type Schema struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable tool to the model.
type Function struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// QueryInput is the argument object every tool accepts.
type QueryInput struct {
	Query string `json:"query" jsonschema:"description=Input for the tool"`
}

var reflector = &jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// ParameterSchema returns the parameter schema for a tool: an object with a
// single required string property named query.
func ParameterSchema(t Tool) *jsonschema.Schema {
	s := reflector.Reflect(&QueryInput{})
	s.Version = ""
	s.ID = ""
	if prop, ok := s.Properties.Get("query"); ok {
		prop.Description = "Input for the " + t.Name + " tool"
	}
	return s
}

// ToSchema converts a tool to its provider schema entry.
func ToSchema(t Tool) Schema {
	return Schema{
		Type: "function",
		Function: Function{
			Name:        t.ID,
			Description: t.Description,
			Parameters:  ParameterSchema(t),
		},
	}
}

// Schemas converts the enabled tools of s, in order.
func (s Set) Schemas() []Schema {
	enabled := s.Enabled()
	if len(enabled) == 0 {
		return nil
	}
	out := make([]Schema, len(enabled))
	for i, t := range enabled {
		out[i] = ToSchema(t)
	}
	return out
}
