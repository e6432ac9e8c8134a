// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package puter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/puterchat/internal/provider"
)

// MaxChunkSize is the maximum allowed size for a single stream line (64KB).
const MaxChunkSize = 64 * 1024

// =============================================================================
// WIRE CHUNKS
// =============================================================================

// wireChunk accepts both the native {"type":"text","text":...} shape and
// OpenAI-style choice deltas.
type wireChunk struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func (w *wireChunk) content() string {
	if w.Text != "" {
		return w.Text
	}
	if len(w.Choices) > 0 {
		return w.Choices[0].Delta.Content
	}
	return ""
}

// StreamError is a failure mid-stream. Partial is what arrived before it.
type StreamError struct {
	Partial int // bytes of text received before the error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial > 0 {
		return fmt.Sprintf("stream error (partial content received: %d bytes): %v", e.Partial, e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// FRAME READERS
// =============================================================================

// frameReader yields raw payloads; io.EOF ends the stream.
type frameReader interface {
	next() ([]byte, error)
}

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReaderSize(r, 4096)}
}

// ReadEvent reads the next SSE event, returning its type and data.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > MaxChunkSize {
			return "", nil, fmt.Errorf("event exceeds %d bytes", MaxChunkSize)
		}
		if err != nil {
			if err == io.EOF {
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line ends the event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// id:, retry: and comments are ignored
	}
}

func (s *SSEReader) next() ([]byte, error) {
	_, data, err := s.ReadEvent()
	if err != nil {
		return nil, err
	}
	if bytes.Equal(data, []byte("[DONE]")) {
		return nil, io.EOF
	}
	return data, nil
}

// ndjsonReader yields one JSON document per line.
type ndjsonReader struct {
	scanner *bufio.Scanner
}

func newNDJSONReader(r io.Reader) *ndjsonReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), MaxChunkSize)
	return &ndjsonReader{scanner: sc}
}

func (n *ndjsonReader) next() ([]byte, error) {
	for n.scanner.Scan() {
		line := bytes.TrimSpace(n.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
	if err := n.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// =============================================================================
// STREAM
// =============================================================================

// stream adapts a response body to provider.Stream.
type stream struct {
	body   io.ReadCloser
	frames frameReader

	// mu serializes readers; Close does not take it so it can interrupt a
	// blocked read.
	mu       sync.Mutex
	received int
	done     bool
	closed   atomic.Bool
}

var _ provider.Stream = (*stream)(nil)

func newStream(body io.ReadCloser, frames frameReader) *stream {
	return &stream{body: body, frames: frames}
}

// Recv returns the next non-empty chunk.
func (s *stream) Recv(ctx context.Context) (provider.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return provider.Chunk{}, io.ErrClosedPipe
	}
	if s.done {
		return provider.Chunk{}, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return provider.Chunk{}, &StreamError{Partial: s.received, Err: err}
		}

		data, err := s.frames.next()
		if errors.Is(err, io.EOF) {
			s.done = true
			return provider.Chunk{}, io.EOF
		}
		if err != nil {
			return provider.Chunk{}, &StreamError{Partial: s.received, Err: err}
		}

		var wc wireChunk
		if err := json.Unmarshal(data, &wc); err != nil {
			return provider.Chunk{}, &StreamError{
				Partial: s.received,
				Err:     &ClientError{Type: ErrTypeInvalidResponse, Message: "malformed stream chunk", Cause: err},
			}
		}
		if wc.Error != nil {
			return provider.Chunk{}, &StreamError{
				Partial: s.received,
				Err:     &ClientError{Type: ErrTypeServer, Message: wc.Error.Message},
			}
		}

		text := wc.content()
		if text == "" {
			continue
		}
		s.received += len(text)
		return provider.Chunk{Text: text}, nil
	}
}

// Close releases the connection.
func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.body.Close()
}
