// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestDefaultCatalog_DefaultModelSupportsEverything(t *testing.T) {
	c := DefaultCatalog()
	for _, capability := range []Capability{CapChat, CapStreaming, CapFunctionCalling} {
		if !c.Supports(DefaultModel, capability) {
			t.Errorf("%s should support %s", DefaultModel, capability)
		}
	}
}

func TestDefaultCatalog_CompatibleSets(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		id        string
		streaming bool
		functions bool
	}{
		{"gpt-4o-mini", true, true},
		{"gpt-4o", true, true},
		{"gpt-4.5-preview", true, true},
		{"claude-3-7-sonnet", true, true},
		{"claude-3-5-sonnet", true, true},
		{"mistral-large-latest", true, false},
		{"pixtral-large-latest", true, false},
		{"codestral-latest", true, false},
		{"grok-beta", true, false},
		{"gemini-1.5-flash", false, false},
		{"unknown-model", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			if got := c.Supports(tc.id, CapStreaming); got != tc.streaming {
				t.Errorf("streaming = %v, want %v", got, tc.streaming)
			}
			if got := c.Supports(tc.id, CapFunctionCalling); got != tc.functions {
				t.Errorf("function calling = %v, want %v", got, tc.functions)
			}
		})
	}

	if n := len(c.Compatible(CapFunctionCalling)); n != 5 {
		t.Errorf("function calling set has %d models, want 5", n)
	}
	if n := len(c.Compatible(CapStreaming)); n != 9 {
		t.Errorf("streaming set has %d models, want 9", n)
	}
}

func TestNewCatalog_DuplicateKeepsPosition(t *testing.T) {
	c := NewCatalog([]ModelInfo{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "a", Name: "A2"},
		{ID: ""},
	})
	list := c.List()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "a" || list[0].Name != "A2" {
		t.Errorf("first = %+v, want a/A2", list[0])
	}
}

func TestCatalog_Fallback(t *testing.T) {
	streaming := []Capability{CapChat, CapStreaming}
	tests := []struct {
		name    string
		catalog *Catalog
		caps    []Capability
		want    string
		wantOK  bool
	}{
		{"default catalog", DefaultCatalog(), []Capability{CapStreaming, CapFunctionCalling}, DefaultModel, true},
		{"default missing", NewCatalog([]ModelInfo{
			{ID: "plain", Capabilities: []Capability{CapChat}},
			{ID: "zeta", Capabilities: streaming},
			{ID: "alpha", Capabilities: streaming},
		}), []Capability{CapStreaming}, "zeta", true},
		{"default lacks capability", NewCatalog([]ModelInfo{
			{ID: DefaultModel, Capabilities: []Capability{CapChat}},
			{ID: "other", Capabilities: streaming},
		}), []Capability{CapStreaming}, "other", true},
		{"none qualifies", NewCatalog([]ModelInfo{
			{ID: "plain", Capabilities: []Capability{CapChat}},
		}), []Capability{CapFunctionCalling}, "", false},
		{"no requirements", NewCatalog([]ModelInfo{{ID: "first"}, {ID: "second"}}), nil, "first", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.catalog.Fallback(tc.caps...)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("Fallback = (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewPendingImage(t *testing.T) {
	msg := NewPendingImage("Generating image from: a cat", "gpt-4o")
	if msg.Role != RoleAssistant || msg.Kind != KindImage {
		t.Errorf("role/kind = %s/%s", msg.Role, msg.Kind)
	}
	if msg.ImageURL != "" || msg.HasImage() {
		t.Error("pending image should have no URL")
	}
	if !msg.IsPending() {
		t.Error("pending image should be pending")
	}
	if msg.Model != "gpt-4o" {
		t.Errorf("model = %q", msg.Model)
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		content string
		max     int
		want    string
	}{
		{"short", 10, "short"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 2, "ab"},
	}
	for _, tc := range tests {
		msg := Message{Content: tc.content}
		if got := msg.Preview(tc.max); got != tc.want {
			t.Errorf("Preview(%q, %d) = %q, want %q", tc.content, tc.max, got, tc.want)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

// exchange builds [U1, A1, U2, A2].
func exchange() (*Conversation, []Message) {
	conv := NewConversation()
	msgs := []Message{
		NewUserMessage("one"),
		NewAssistantMessage("reply one", DefaultModel),
		NewUserMessage("two"),
		NewAssistantMessage("reply two", DefaultModel),
	}
	conv.Append(msgs...)
	return conv, msgs
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConversation_DeleteExchange(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   []int
	}{
		{"assistant takes preceding user", 1, []int{2, 3}},
		{"user takes following assistant", 2, []int{0, 1}},
		{"last assistant", 3, []int{0, 1}},
		{"first user", 0, []int{2, 3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conv, msgs := exchange()
			removed := conv.DeleteExchange(msgs[tc.target].ID)
			if len(removed) != 2 {
				t.Errorf("removed %d messages, want 2", len(removed))
			}

			var want []string
			for _, i := range tc.want {
				want = append(want, msgs[i].ID)
			}
			if got := ids(conv.Messages); !equalIDs(got, want) {
				t.Errorf("remaining = %v, want %v", got, want)
			}
		})
	}
}

func TestConversation_DeleteExchange_Orphans(t *testing.T) {
	conv := NewConversation()
	sys := NewSystemMessage("hi")
	u1 := NewUserMessage("a")
	u2 := NewUserMessage("b")
	a2 := NewAssistantMessage("c", DefaultModel)
	a3 := NewAssistantMessage("d", DefaultModel)
	conv.Append(sys, u1, u2, a2, a3)

	// a3 follows an assistant, so only a3 goes
	if removed := conv.DeleteExchange(a3.ID); !equalIDs(removed, []string{a3.ID}) {
		t.Errorf("removed = %v", removed)
	}
	// u1 is followed by a user, so only u1 goes
	if removed := conv.DeleteExchange(u1.ID); !equalIDs(removed, []string{u1.ID}) {
		t.Errorf("removed = %v", removed)
	}
	// system messages never pair
	if removed := conv.DeleteExchange(sys.ID); !equalIDs(removed, []string{sys.ID}) {
		t.Errorf("removed = %v", removed)
	}
	if got := ids(conv.Messages); !equalIDs(got, []string{u2.ID, a2.ID}) {
		t.Errorf("remaining = %v", got)
	}
	if removed := conv.DeleteExchange("missing"); removed != nil {
		t.Errorf("unknown id removed %v", removed)
	}
}

func TestConversation_ResendCandidate(t *testing.T) {
	conv := NewConversation()
	u1 := NewUserMessage("fix this")
	a1 := NewAssistantMessage("done", DefaultModel)
	orphan := NewAssistantMessage("lonely", DefaultModel)
	conv.Append(u1, a1, orphan)

	for _, id := range []string{u1.ID, a1.ID} {
		text, ok := conv.ResendCandidate(id)
		if !ok || text != "fix this" {
			t.Errorf("ResendCandidate(%s) = %q, %v", id, text, ok)
		}
	}
	if _, ok := conv.ResendCandidate(orphan.ID); ok {
		t.Error("assistant after assistant should have no candidate")
	}
	if _, ok := conv.ResendCandidate("missing"); ok {
		t.Error("unknown id should have no candidate")
	}
	if conv.Len() != 3 {
		t.Errorf("ResendCandidate mutated the log: len = %d", conv.Len())
	}
}

func TestConversation_UpdateInPlace(t *testing.T) {
	conv := NewConversation()
	pending := NewPendingImage("Generating image from: a cat", DefaultModel)
	conv.Append(NewUserMessage("a cat"), pending)

	ok := conv.Update(pending.ID, func(m *Message) {
		m.ImageURL = "https://example.com/cat.png"
		m.State = StateComplete
	})
	if !ok {
		t.Fatal("Update returned false")
	}
	got, _ := conv.Get(pending.ID)
	if !got.HasImage() || got.State != StateComplete {
		t.Errorf("message not resolved: %+v", got)
	}
	if conv.Len() != 2 {
		t.Errorf("len = %d, want 2", conv.Len())
	}
	if conv.Update("missing", func(*Message) {}) {
		t.Error("Update on unknown id should return false")
	}
}

func TestConversation_History(t *testing.T) {
	conv := NewConversation()
	conv.Append(
		NewUserMessage("hello"),
		NewAssistantMessage("hi there", DefaultModel),
		NewUserMessage("draw"),
		NewPendingImage("Generating image from: draw", DefaultModel),
		NewUserMessage("next"),
		NewPendingAssistant(DefaultModel),
	)
	hist := conv.History()
	if len(hist) != 4 {
		t.Fatalf("history len = %d, want 4", len(hist))
	}
	if hist[3].Content != "next" {
		t.Errorf("last history entry = %q", hist[3].Content)
	}

	for i := 0; i < MaxHistoryMessages; i++ {
		conv.Append(NewUserMessage("filler"))
	}
	if n := len(conv.History()); n != MaxHistoryMessages {
		t.Errorf("history len = %d, want %d", n, MaxHistoryMessages)
	}
}

func TestConversation_SnapshotIsolation(t *testing.T) {
	conv, msgs := exchange()
	snap := conv.Snapshot()
	conv.Update(msgs[1].ID, func(m *Message) { m.Content = "changed" })
	if snap[1].Content != "reply one" {
		t.Errorf("snapshot changed with the log: %q", snap[1].Content)
	}
}

func TestConversation_Title(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("default title = %q", conv.GetTitle())
	}
	conv.Append(NewUserMessage("What is the capital of France?"))
	if conv.GetTitle() != "What is the capital of France?" {
		t.Errorf("title = %q", conv.GetTitle())
	}
	conv.Clear()
	if !conv.IsEmpty() || conv.Title != "" {
		t.Error("Clear should empty messages and title")
	}
}
