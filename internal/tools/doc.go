// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools holds the function-calling tools a user can enable.
//
// Tools are not executed locally. When function calling is on, each enabled
// tool is described to the provider as a function taking one required string
// argument, query, and the provider decides how to use it.
//
// # Key Types
//
//   - Tool: id, display name, description and enabled flag
//   - Set: ordered collection unique by id
//   - Schema: the provider's function/tool schema entry
//
// # Built-in Tools
//
//   - weather: Get current weather for a location (enabled)
//   - calculator: Perform calculations
//   - search: Search the web for information
package tools
