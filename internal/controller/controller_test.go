// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/provider/fake"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestController(t *testing.T, p *fake.Provider, opts Options) *Controller {
	t.Helper()
	opts.Logger = zerolog.Nop()
	c, err := New(p, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// watch collects every published snapshot.
type watch struct {
	mu    sync.Mutex
	snaps []Snapshot
	ch    chan Snapshot
}

func newWatch(t *testing.T, c *Controller) *watch {
	w := &watch{ch: make(chan Snapshot, 1024)}
	t.Cleanup(c.Subscribe(func(s Snapshot) {
		w.mu.Lock()
		w.snaps = append(w.snaps, s)
		w.mu.Unlock()
		w.ch <- s
	}))
	return w
}

// waitFor blocks until a snapshot satisfies ok.
func (w *watch) waitFor(t *testing.T, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-w.ch:
			if ok(s) {
				return s
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
			return Snapshot{}
		}
	}
}

func (w *watch) all() []Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Snapshot(nil), w.snaps...)
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// twoExchanges builds [U1, A1, U2, A2].
func twoExchanges(t *testing.T, c *Controller) []model.Message {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.SendPrompt(ctx, "first", ModeChat))
	require.NoError(t, c.SendPrompt(ctx, "second", ModeChat))
	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 4)
	return msgs
}

// =============================================================================
// SEND
// =============================================================================

func TestSendAppendsUserMessageBeforeProviderResolves(t *testing.T) {
	p := fake.New()
	gate := make(chan struct{})
	p.QueueChat(fake.Reply{Text: "hi there", Gate: gate})
	c := newTestController(t, p, Options{})
	w := newWatch(t, c)

	done := make(chan error, 1)
	go func() { done <- c.SendPrompt(context.Background(), "hello", ModeChat) }()

	snap := w.waitFor(t, func(s Snapshot) bool { return len(s.Messages) == 2 })
	user, reply := snap.Messages[0], snap.Messages[1]
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Content)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "", reply.Content)
	assert.Equal(t, model.StatePending, reply.State)
	assert.True(t, snap.Busy)

	close(gate)
	require.NoError(t, <-done)

	final := c.Snapshot()
	require.Len(t, final.Messages, 2)
	got, ok := final.Message(reply.ID)
	require.True(t, ok)
	assert.Equal(t, "hi there", got.Content)
	assert.Equal(t, model.StateComplete, got.State)
	assert.False(t, final.Busy)
}

func TestSendEmptyPrompt(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode Mode
	}{
		{"empty", "", ModeChat},
		{"spaces", "   ", ModeChat},
		{"whitespace", "\n\t ", ModeChat},
		{"image mode", "  ", ModeTextToImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New()
			c := newTestController(t, p, Options{})
			before := c.Snapshot().Version

			err := c.SendPrompt(context.Background(), tt.text, tt.mode)
			assert.ErrorIs(t, err, ErrEmptyPrompt)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))

			snap := c.Snapshot()
			assert.Empty(t, snap.Messages)
			assert.Equal(t, before, snap.Version)
			assert.Empty(t, p.Calls())
		})
	}
}

func TestSendClearsDraft(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	c.SetDraft("hello")
	require.Equal(t, "hello", c.Draft())

	require.NoError(t, c.SendPrompt(context.Background(), "hello", ModeChat))
	assert.Equal(t, "", c.Draft())
}

func TestSendKeepsTextVerbatim(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"decomposed accent", "cafe\u0301"},
		{"composed accent", "caf\u00e9"},
		{"surrounding space", "  padded prompt \n"},
		{"ligature", "\ufb01le"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New()
			c := newTestController(t, p, Options{})
			require.NoError(t, c.SendPrompt(context.Background(), tt.text, ModeChat))

			msgs := c.Snapshot().Messages
			require.Len(t, msgs, 2)
			assert.Equal(t, []byte(tt.text), []byte(msgs[0].Content))

			calls := p.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, []byte(tt.text), []byte(calls[0].Prompt))

			got, ok := c.ResendMessage(msgs[1].ID)
			require.True(t, ok)
			assert.Equal(t, tt.text, got)
		})
	}
}

func TestStreamingChunksObservedInOrder(t *testing.T) {
	p := fake.New()
	p.QueueChat(fake.Reply{Chunks: []string{"Hel", "lo, ", " world"}})
	c := newTestController(t, p, Options{
		Settings: settings.Settings{Theme: settings.ThemeDark, StreamEnabled: true},
	})
	w := newWatch(t, c)

	require.NoError(t, c.SendPrompt(context.Background(), "greet", ModeChat))

	var seen []string
	var versions []uint64
	for _, s := range w.all() {
		versions = append(versions, s.Version)
		if len(s.Messages) < 2 {
			continue
		}
		content := s.Messages[1].Content
		if len(seen) == 0 || seen[len(seen)-1] != content {
			seen = append(seen, content)
		}
	}

	assert.Equal(t, []string{"", "Hel", "Hello, ", "Hello,  world"}, seen)
	assert.IsIncreasing(t, versions)

	final := c.Snapshot().Messages[1]
	assert.Equal(t, "Hello,  world", final.Content)
	assert.Equal(t, model.StateComplete, final.State)

	calls := p.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Opts.Stream)
}

func TestStreamRequestedButCompleteReturned(t *testing.T) {
	p := fake.New()
	p.QueueChat(fake.Reply{Text: "whole answer"})
	c := newTestController(t, p, Options{
		Settings: settings.Settings{StreamEnabled: true},
	})

	require.NoError(t, c.SendPrompt(context.Background(), "q", ModeChat))

	msg := c.Snapshot().Messages[1]
	assert.Equal(t, "whole answer", msg.Content)
	assert.Equal(t, model.StateComplete, msg.State)
}

func TestUnrequestedStreamSetOnce(t *testing.T) {
	p := fake.New()
	p.QueueChat(fake.Reply{Chunks: []string{"a", "b", "c"}})
	c := newTestController(t, p, Options{})
	w := newWatch(t, c)

	require.NoError(t, c.SendPrompt(context.Background(), "q", ModeChat))

	for _, s := range w.all() {
		if len(s.Messages) == 2 {
			content := s.Messages[1].Content
			assert.Contains(t, []string{"", "abc"}, content, "content is set once")
		}
	}
	assert.Equal(t, "abc", c.Snapshot().Messages[1].Content)
}

func TestSendFailure(t *testing.T) {
	boom := errors.New("network down")

	tests := []struct {
		name    string
		reply   fake.Reply
		stream  bool
		content string
	}{
		{"call rejected", fake.Reply{Err: boom}, false, ""},
		{"stream broken", fake.Reply{Chunks: []string{"par", "tial"}, StreamErr: boom}, true, "partial"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New()
			p.QueueChat(tt.reply)
			c := newTestController(t, p, Options{
				Settings: settings.Settings{StreamEnabled: tt.stream},
			})

			err := c.SendPrompt(context.Background(), "do it", ModeChat)
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)

			var cerr *CollaboratorError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, OpChat, cerr.Op)

			snap := c.Snapshot()
			require.Len(t, snap.Messages, 2)
			assert.Equal(t, "do it", snap.Messages[0].Content)
			reply := snap.Messages[1]
			assert.Equal(t, cerr.MessageID, reply.ID)
			assert.Equal(t, tt.content, reply.Content)
			assert.Equal(t, model.StateFailed, reply.State)

			notice, ok := snap.LastNotice()
			require.True(t, ok)
			assert.Equal(t, NoticeError, notice.Level)
			assert.Equal(t, "Failed to get a response. Please try again.", notice.Description)
			assert.Len(t, p.Calls(), 1, "no retry")
		})
	}
}

func TestSendIncludesHistoryAndTools(t *testing.T) {
	p := fake.New()
	c := newTestController(t, p, Options{
		Settings: settings.Settings{FunctionCallingEnabled: true},
		Model:    "gpt-4o",
	})
	ctx := context.Background()

	require.NoError(t, c.SendPrompt(ctx, "one", ModeChat))
	require.NoError(t, c.SendPrompt(ctx, "two", ModeChat))

	calls := p.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Opts.History)
	require.Len(t, calls[1].Opts.History, 2)
	assert.Equal(t, provider.Turn{Role: "user", Content: "one"}, calls[1].Opts.History[0])
	assert.Equal(t, "gpt-4o", calls[1].Opts.Model)

	require.Len(t, calls[1].Opts.Tools, 1)
	assert.Equal(t, "weather", calls[1].Opts.Tools[0].Function.Name)
}

func TestSendWithoutFunctionCallingSendsNoTools(t *testing.T) {
	p := fake.New()
	c := newTestController(t, p, Options{})
	require.NoError(t, c.SendPrompt(context.Background(), "q", ModeChat))
	assert.Nil(t, p.Calls()[0].Opts.Tools)
}

func TestTextToImagePendingThenResolved(t *testing.T) {
	p := fake.New()
	gate := make(chan struct{})
	p.QueueImage(fake.ImageReply{Src: "https://img.example/cat.png", Gate: gate})
	c := newTestController(t, p, Options{})
	w := newWatch(t, c)

	done := make(chan error, 1)
	go func() { done <- c.SendPrompt(context.Background(), "a cat", ModeTextToImage) }()

	snap := w.waitFor(t, func(s Snapshot) bool { return len(s.Messages) == 2 })
	pending := snap.Messages[1]
	assert.Equal(t, model.KindImage, pending.Kind)
	assert.Equal(t, "", pending.ImageURL)
	assert.Equal(t, "Generating image from: a cat", pending.Content)

	close(gate)
	require.NoError(t, <-done)

	final := c.Snapshot()
	require.Len(t, final.Messages, 2)
	got, ok := final.Message(pending.ID)
	require.True(t, ok)
	assert.Equal(t, "https://img.example/cat.png", got.ImageURL)
	assert.Equal(t, model.StateComplete, got.State)
	assert.Empty(t, p.Calls(), "image mode does not chat")
}

func TestTextToImageFailureKeepsMessage(t *testing.T) {
	p := fake.New()
	p.QueueImage(fake.ImageReply{Err: errors.New("quota")})
	c := newTestController(t, p, Options{})

	err := c.SendPrompt(context.Background(), "a dog", ModeTextToImage)
	var cerr *CollaboratorError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, OpTextToImage, cerr.Op)

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "", snap.Messages[1].ImageURL)
	assert.Equal(t, model.StateFailed, snap.Messages[1].State)

	notice, _ := snap.LastNotice()
	assert.Equal(t, "Failed to generate image. Please try again.", notice.Description)
}

func TestOverlappingSendsTouchOnlyTheirMessages(t *testing.T) {
	p := fake.New()
	slow := make(chan struct{})
	p.QueueChat(fake.Reply{Text: "slow", Gate: slow}, fake.Reply{Text: "fast"})
	c := newTestController(t, p, Options{})
	w := newWatch(t, c)

	done := make(chan error, 1)
	go func() { done <- c.SendPrompt(context.Background(), "first", ModeChat) }()
	w.waitFor(t, func(s Snapshot) bool { return len(s.Messages) == 2 })

	require.NoError(t, c.SendPrompt(context.Background(), "second", ModeChat))
	close(slow)
	require.NoError(t, <-done)

	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "slow", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "fast", msgs[3].Content)
}

func TestCloseStopsInflightSend(t *testing.T) {
	p := fake.New()
	p.QueueChat(fake.Reply{Text: "never", Gate: make(chan struct{})})
	c, err := New(p, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	w := newWatch(t, c)

	done := make(chan error, 1)
	go func() { done <- c.SendPrompt(context.Background(), "hang", ModeChat) }()
	w.waitFor(t, func(s Snapshot) bool { return len(s.Messages) == 2 })

	c.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not stop")
	}

	assert.ErrorIs(t, c.SendPrompt(context.Background(), "again", ModeChat), ErrClosed)
}

// =============================================================================
// EDITS
// =============================================================================

func TestDeleteMessageAdjacency(t *testing.T) {
	tests := []struct {
		name   string
		target int
		keep   []int
	}{
		{"assistant takes preceding user", 1, []int{2, 3}},
		{"user takes following assistant", 2, []int{0, 1}},
		{"last assistant", 3, []int{0, 1}},
		{"first user", 0, []int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, fake.New(), Options{})
			msgs := twoExchanges(t, c)

			removed := c.DeleteMessage(msgs[tt.target].ID)
			assert.Len(t, removed, 2)

			var want []string
			for _, i := range tt.keep {
				want = append(want, msgs[i].ID)
			}
			snap := c.Snapshot()
			assert.Equal(t, want, ids(snap.Messages))

			notice, ok := snap.LastNotice()
			require.True(t, ok)
			assert.Equal(t, "Message deleted", notice.Title)
		})
	}
}

func TestDeleteUnknownMessage(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	twoExchanges(t, c)
	before := c.Snapshot().Version

	assert.Nil(t, c.DeleteMessage("missing"))
	assert.Equal(t, before, c.Snapshot().Version)
}

func TestResendMessage(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	require.NoError(t, c.SendPrompt(context.Background(), "fix this", ModeChat))
	msgs := c.Snapshot().Messages
	before := c.Snapshot().Messages

	for _, m := range msgs {
		got, ok := c.ResendMessage(m.ID)
		require.True(t, ok, m.Role)
		assert.Equal(t, "fix this", got)
		assert.Equal(t, "fix this", c.Draft())
	}
	assert.Equal(t, before, c.Snapshot().Messages, "log unchanged")

	_, ok := c.ResendMessage("missing")
	assert.False(t, ok)
}

func TestResendAfterVisionCapture(t *testing.T) {
	c := newTestController(t, fake.New(), Options{Model: "claude-3-7-sonnet"})
	require.NoError(t, c.AddVisionCapture("https://img.example/p.png", "a desk"))
	msgs := c.Snapshot().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, "claude-3-7-sonnet", msgs[1].Model)

	// The preceding user message is an image capture, which still counts.
	got, ok := c.ResendMessage(msgs[1].ID)
	assert.True(t, ok)
	assert.Equal(t, "I took this picture:", got)

	c.Clear()
	assert.Empty(t, c.Snapshot().Messages)
}

// =============================================================================
// SETTINGS AND MODELS
// =============================================================================

func TestApplySettingsSwitchesIncompatibleModel(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		next    settings.Settings
		want    string
		notices []string
	}{
		{
			name:    "function calling on grok",
			model:   "grok-beta",
			next:    settings.Settings{FunctionCallingEnabled: true},
			want:    model.DefaultModel,
			notices: []string{"Switched to a function calling-compatible model"},
		},
		{
			name:  "streaming on grok",
			model: "grok-beta",
			next:  settings.Settings{StreamEnabled: true},
			want:  "grok-beta",
		},
		{
			name:    "streaming on gemini",
			model:   "gemini-1.5-flash",
			next:    settings.Settings{StreamEnabled: true},
			want:    model.DefaultModel,
			notices: []string{"Switched to a streaming-compatible model"},
		},
		{
			name:    "both on gemini",
			model:   "gemini-1.5-flash",
			next:    settings.Settings{StreamEnabled: true, FunctionCallingEnabled: true},
			want:    model.DefaultModel,
			notices: []string{"Switched to a streaming-compatible model"},
		},
		{
			name:  "compatible model kept",
			model: "claude-3-5-sonnet",
			next:  settings.Settings{StreamEnabled: true, FunctionCallingEnabled: true},
			want:  "claude-3-5-sonnet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, fake.New(), Options{Model: tt.model})
			require.Equal(t, tt.model, c.Model())

			tt.next.Theme = settings.ThemeDark
			c.ApplySettings(tt.next)

			snap := c.Snapshot()
			assert.Equal(t, tt.want, snap.Model)
			assert.Equal(t, tt.next, snap.Settings)

			var got []string
			for _, n := range snap.Notices {
				assert.Equal(t, NoticeInfo, n.Level)
				assert.Equal(t, "Model changed", n.Title)
				got = append(got, n.Description)
			}
			assert.Equal(t, tt.notices, got)
		})
	}
}

func TestApplySettingsAfterRefreshUsesCatalogFallback(t *testing.T) {
	p := fake.New()
	p.Models = []model.ModelInfo{
		{ID: "plain-model", Capabilities: []model.Capability{model.CapChat}},
		{ID: "stream-model", Capabilities: []model.Capability{model.CapChat, model.CapStreaming}},
	}
	c := newTestController(t, p, Options{Model: "plain-model"})
	require.NoError(t, c.RefreshModels(context.Background()))
	require.Equal(t, "plain-model", c.Model())
	require.Empty(t, c.Snapshot().Notices)

	for round := 0; round < 2; round++ {
		c.ApplySettings(settings.Settings{Theme: settings.ThemeDark, StreamEnabled: true})
		snap := c.Snapshot()
		assert.Equal(t, "stream-model", snap.Model, "round %d", round)
		assert.True(t, model.NewCatalog(snap.Models).Supports(snap.Model, model.CapStreaming), "round %d", round)
		assert.Len(t, snap.Notices, 1, "round %d", round)

		c.ApplySettings(settings.Settings{Theme: settings.ThemeDark})
	}
}

func TestApplySettingsNoCompatibleModel(t *testing.T) {
	p := fake.New()
	p.Models = []model.ModelInfo{
		{ID: "plain-model", Capabilities: []model.Capability{model.CapChat}},
	}
	c := newTestController(t, p, Options{Model: "plain-model"})
	require.NoError(t, c.RefreshModels(context.Background()))

	c.ApplySettings(settings.Settings{Theme: settings.ThemeDark, FunctionCallingEnabled: true})
	assert.Equal(t, "plain-model", c.Model())
	assert.Empty(t, c.Snapshot().Notices, "nothing changed, nothing announced")
	assert.True(t, c.Settings().FunctionCallingEnabled, "settings change is never rejected")
}

func TestApplySettingsThemeOnly(t *testing.T) {
	c := newTestController(t, fake.New(), Options{
		Settings: settings.Settings{Theme: settings.ThemeDark, StreamEnabled: true},
		Model:    "grok-beta",
	})

	// Streaming stays on, so only the theme changes.
	c.ApplySettings(settings.Settings{Theme: settings.ThemeSunset, StreamEnabled: true})
	assert.Equal(t, "grok-beta", c.Model())
	assert.Empty(t, c.Snapshot().Notices)
}

func TestApplySettingsNormalizesTheme(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	c.ApplySettings(settings.Settings{Theme: "neon"})
	assert.Equal(t, settings.ThemeDark, c.Settings().Theme)
}

func TestSelectModel(t *testing.T) {
	c := newTestController(t, fake.New(), Options{
		Settings: settings.Settings{Theme: settings.ThemeDark, FunctionCallingEnabled: true},
	})

	require.NoError(t, c.SelectModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", c.Model())

	err := c.SelectModel("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)

	err = c.SelectModel("grok-beta")
	var mismatch *CapabilityMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, model.CapFunctionCalling, mismatch.Capability)
	assert.Equal(t, "gpt-4o", c.Model(), "selection unchanged")
}

func TestModeAndDraft(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	assert.Equal(t, ModeChat, c.Mode())

	assert.Equal(t, ModeTextToImage, c.ToggleMode())
	assert.Equal(t, ModeChat, c.ToggleMode())

	c.SetMode(ModeTextToImage)
	assert.Equal(t, ModeTextToImage, c.Snapshot().Mode)

	before := c.Snapshot().Version
	c.SetDraft("")
	assert.Equal(t, before, c.Snapshot().Version, "no-op draft change does not publish")

	assert.Equal(t, ModeTextToImage, ParseMode("image"))
	assert.Equal(t, ModeChat, ParseMode("anything"))
}

func TestRefreshModels(t *testing.T) {
	p := fake.New()
	p.Models = []model.ModelInfo{
		{ID: "only-model", Name: "Only", Capabilities: []model.Capability{model.CapChat}},
	}
	c := newTestController(t, p, Options{})

	require.NoError(t, c.RefreshModels(context.Background()))
	snap := c.Snapshot()
	require.Len(t, snap.Models, 1)
	assert.Equal(t, "only-model", snap.Models[0].ID)
	assert.ErrorIs(t, c.SelectModel("gpt-4o"), ErrUnknownModel)

	// The default model is gone from the new catalog.
	assert.Equal(t, "only-model", snap.Model)
	notice, ok := snap.LastNotice()
	require.True(t, ok)
	assert.Equal(t, "Model changed", notice.Title)
}

func TestRefreshModelsRechecksCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		models  []model.ModelInfo
		want    string
		notices int
	}{
		{
			name: "selected model loses streaming",
			models: []model.ModelInfo{
				{ID: "gpt-4o", Capabilities: []model.Capability{model.CapChat}},
				{ID: "stream-model", Capabilities: []model.Capability{model.CapChat, model.CapStreaming}},
			},
			want:    "stream-model",
			notices: 1,
		},
		{
			name: "default preferred when listed",
			models: []model.ModelInfo{
				{ID: "gpt-4o", Capabilities: []model.Capability{model.CapChat}},
				{ID: "stream-model", Capabilities: []model.Capability{model.CapChat, model.CapStreaming}},
				{ID: model.DefaultModel, Capabilities: []model.Capability{model.CapChat, model.CapStreaming}},
			},
			want:    model.DefaultModel,
			notices: 1,
		},
		{
			name: "selected model still compatible",
			models: []model.ModelInfo{
				{ID: "gpt-4o", Capabilities: []model.Capability{model.CapChat, model.CapStreaming}},
			},
			want: "gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New()
			p.Models = tt.models
			kv := storage.NewMemoryKV()
			c := newTestController(t, p, Options{
				Store:    kv,
				Model:    "gpt-4o",
				Settings: settings.Settings{Theme: settings.ThemeDark, StreamEnabled: true},
			})

			require.NoError(t, c.RefreshModels(context.Background()))
			snap := c.Snapshot()
			assert.Equal(t, tt.want, snap.Model)
			assert.Len(t, snap.Notices, tt.notices)
		})
	}
}

// =============================================================================
// TOOLS
// =============================================================================

func TestToggleTool(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})

	tool, err := c.ToggleTool("calculator", true)
	require.NoError(t, err)
	assert.True(t, tool.Enabled)

	notice, _ := c.Snapshot().LastNotice()
	assert.Equal(t, "Tool Enabled", notice.Title)
	assert.Equal(t, "Calculator has been enabled.", notice.Description)

	_, err = c.ToggleTool("weather", false)
	require.NoError(t, err)
	notice, _ = c.Snapshot().LastNotice()
	assert.Equal(t, "Tool Disabled", notice.Title)
	assert.Equal(t, "Weather has been disabled.", notice.Description)

	enabled := c.Tools().Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "calculator", enabled[0].ID)

	_, err = c.ToggleTool("teleport", true)
	assert.Error(t, err)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestPreferencesPersist(t *testing.T) {
	kv := storage.NewMemoryKV()

	first := newTestController(t, fake.New(), Options{Store: kv})
	first.ApplySettings(settings.Settings{Theme: settings.ThemeSunset, StreamEnabled: true})
	require.NoError(t, first.SelectModel("claude-3-7-sonnet"))
	_, err := first.ToggleTool("search", true)
	require.NoError(t, err)

	second := newTestController(t, fake.New(), Options{Store: kv})
	assert.Equal(t, settings.ThemeSunset, second.Settings().Theme)
	assert.True(t, second.Settings().StreamEnabled)
	assert.Equal(t, "claude-3-7-sonnet", second.Model())
	got, ok := second.Tools().Get("search")
	require.True(t, ok)
	assert.True(t, got.Enabled)
}

func TestLoadCorrectsPersistedMismatch(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, storage.SetJSON(ctx, kv, settings.KeySettings,
		settings.Settings{Theme: settings.ThemeGrey, FunctionCallingEnabled: true}))
	require.NoError(t, storage.SetJSON(ctx, kv, settings.KeyModel, "grok-beta"))

	c := newTestController(t, fake.New(), Options{Store: kv})
	assert.Equal(t, model.DefaultModel, c.Model())
	assert.Empty(t, c.Snapshot().Notices, "startup correction is silent")

	stored := c.prefs.LoadModel(ctx, "")
	assert.Equal(t, "grok-beta", stored, "correction is not written back")
}

// =============================================================================
// MEDIA
// =============================================================================

func TestExtractText(t *testing.T) {
	p := fake.New()
	c := newTestController(t, p, Options{})
	ctx := context.Background()

	_, err := c.ExtractText(ctx, provider.ImageInput{Name: "empty.png"})
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	msg, err := c.ExtractText(ctx, provider.ImageInput{Name: "scan.png", MIME: "image/png", Data: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, "Extracted text from image:\n\n"+fake.MockExtractedText, msg.Content)
	assert.Equal(t, model.RoleAssistant, msg.Role)
	assert.Equal(t, model.DefaultModel, msg.Model)
	assert.Len(t, c.Snapshot().Messages, 1)

	p.ExtractErr = errors.New("unreadable")
	_, err = c.ExtractText(ctx, provider.ImageInput{Data: []byte{1}})
	var cerr *CollaboratorError
	require.True(t, errors.As(err, &cerr))
	assert.Len(t, c.Snapshot().Messages, 1)
	notice, _ := c.Snapshot().LastNotice()
	assert.Equal(t, "Failed to extract text from image.", notice.Description)
}

func TestSpeakCachesAudio(t *testing.T) {
	p := fake.New()
	c := newTestController(t, p, Options{})
	ctx := context.Background()
	require.NoError(t, c.SendPrompt(ctx, "say hi", ModeChat))
	id := c.Snapshot().Messages[1].ID

	audio, err := c.Speak(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, fake.MockAudioSrc, audio.Src)

	_, err = c.Speak(ctx, id, "en-US")
	require.NoError(t, err)
	assert.Equal(t, 1, p.SpeechCalls())

	_, err = c.Speak(ctx, id, "fr-FR")
	require.NoError(t, err)
	assert.Equal(t, 2, p.SpeechCalls())

	_, err = c.Speak(ctx, id, "not a tag!")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	_, err = c.Speak(ctx, "missing", "")
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestSpeakFailure(t *testing.T) {
	p := fake.New()
	p.SpeechErr = errors.New("tts down")
	c := newTestController(t, p, Options{})
	require.NoError(t, c.SendPrompt(context.Background(), "x", ModeChat))

	_, err := c.Speak(context.Background(), c.Snapshot().Messages[0].ID, "")
	var cerr *CollaboratorError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, OpTextToSpeech, cerr.Op)
	notice, _ := c.Snapshot().LastNotice()
	assert.Equal(t, "Failed to convert text to speech.", notice.Description)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func TestSubscribeDeliversCurrentThenChanges(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	c.SetDraft("x")

	var got []uint64
	unsubscribe := c.Subscribe(func(s Snapshot) { got = append(got, s.Version) })
	c.SetDraft("y")
	unsubscribe()
	unsubscribe()
	c.SetDraft("z")

	assert.Equal(t, []uint64{1, 2}, got)
}

func TestTranscriptIsCopy(t *testing.T) {
	c := newTestController(t, fake.New(), Options{})
	require.NoError(t, c.SendPrompt(context.Background(), "title me", ModeChat))

	conv := c.Transcript()
	require.Len(t, conv.Messages, 2)
	conv.Messages[0].Content = "changed"
	assert.Equal(t, "title me", c.Snapshot().Messages[0].Content)
}
