// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fake

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/puterchat/internal/provider"
)

func TestMockChat(t *testing.T) {
	p := New()
	ctx := context.Background()

	res, err := p.Chat(ctx, "hi", provider.ChatOptions{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.False(t, res.IsStream())
	assert.Equal(t, `This is a mock response to "hi" using model "gpt-4o".`, res.Text())

	res, err = p.Chat(ctx, "hi", provider.ChatOptions{Model: "gpt-4o", Stream: true})
	require.NoError(t, err)
	require.True(t, res.IsStream())
	text, err := provider.Collect(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, MockReply("hi", "gpt-4o"), text)

	assert.Len(t, p.Calls(), 2)
}

func TestScriptedChat(t *testing.T) {
	p := New()
	ctx := context.Background()
	boom := errors.New("boom")
	p.QueueChat(
		Reply{Text: "whole"},
		Reply{Chunks: []string{"a", "b"}, StreamErr: boom},
		Reply{Err: boom},
	)

	res, err := p.Chat(ctx, "1", provider.ChatOptions{Stream: true})
	require.NoError(t, err)
	assert.False(t, res.IsStream(), "scripted complete reply ignores the stream flag")

	res, err = p.Chat(ctx, "2", provider.ChatOptions{})
	require.NoError(t, err)
	text, err := provider.Collect(ctx, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "ab", text)

	_, err = p.Chat(ctx, "3", provider.ChatOptions{})
	assert.ErrorIs(t, err, boom)
}

func TestGatedStream(t *testing.T) {
	p := New()
	gate := make(chan struct{})
	p.QueueChat(Reply{Chunks: []string{"x"}, Gate: gate})

	res, err := p.Chat(context.Background(), "p", provider.ChatOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = res.Stream().Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() { gate <- struct{}{} }()
	chunk, err := res.Stream().Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x", chunk.Text)
}

func TestImages(t *testing.T) {
	p := New()
	img, err := p.TextToImage(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, MockImageBase+"a+cat", img.Src)

	boom := errors.New("no")
	p.QueueImage(ImageReply{Err: boom})
	_, err = p.TextToImage(context.Background(), "a cat")
	assert.ErrorIs(t, err, boom)
}

func TestAuth(t *testing.T) {
	ctx := context.Background()
	a := New().FakeAuth()

	assert.False(t, a.IsSignedIn(ctx))
	_, err := a.GetUser(ctx)
	assert.Error(t, err)

	u, err := a.SignIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock_user", u.Username)
	assert.True(t, a.IsSignedIn(ctx))

	require.NoError(t, a.SignOut(ctx))
	assert.False(t, a.IsSignedIn(ctx))
}

func TestSplitWords(t *testing.T) {
	parts := splitWords("one two  three")
	assert.Equal(t, "one two  three", strings.Join(parts, ""))
	assert.Equal(t, []string{"one", " two", " ", " three"}, parts)
}
