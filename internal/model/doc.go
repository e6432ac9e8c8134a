// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the controller, the
// provider clients and every renderer.
//
// # Key Types
//
//   - Conversation: ordered message log with exchange-aware deletion
//   - Message: one entry with role, content, kind, image URL and state
//   - Catalog: the selectable models and the capabilities each declares
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
//	conv := model.NewConversation()
//	user := model.NewUserMessage("Hello!")
//	reply := model.NewPendingAssistant(model.DefaultModel)
//	conv.Append(user, reply)
//
//	conv.DeleteExchange(reply.ID) // removes both
package model
