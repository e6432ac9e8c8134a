// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"io"
	"strings"
)

// Chunk is one increment of a streamed reply.
type Chunk struct {
	Text string
}

// Stream yields chunks in order. Recv returns io.EOF after the last chunk.
// Close releases the underlying connection and is safe to call more than once.
type Stream interface {
	Recv(ctx context.Context) (Chunk, error)
	Close() error
}

// ChatResult is either a complete reply or a stream, decided by the provider
// when the call returns.
type ChatResult struct {
	text   string
	stream Stream
}

// Complete wraps a full reply.
func Complete(text string) ChatResult {
	return ChatResult{text: text}
}

// Streaming wraps an incremental reply.
func Streaming(s Stream) ChatResult {
	return ChatResult{stream: s}
}

// IsStream reports whether the result must be read incrementally.
func (r ChatResult) IsStream() bool {
	return r.stream != nil
}

// Text returns the complete reply. It is empty for streams.
func (r ChatResult) Text() string {
	return r.text
}

// Stream returns the stream, or nil for complete results.
func (r ChatResult) Stream() Stream {
	return r.stream
}

// Collect reads the result to the end and returns the full text. The stream
// is closed. On error the text read so far is returned with it.
func Collect(ctx context.Context, r ChatResult) (string, error) {
	if !r.IsStream() {
		return r.text, nil
	}
	defer r.stream.Close()

	var sb strings.Builder
	for {
		chunk, err := r.stream.Recv(ctx)
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk.Text)
	}
}
