// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jeranaias/puterchat/internal/model"
)

type sliceStream struct {
	chunks []string
	err    error
	closed int
}

func (s *sliceStream) Recv(context.Context) (Chunk, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return Chunk{Text: c}, nil
}

func (s *sliceStream) Close() error {
	s.closed++
	return nil
}

func TestChatResult_Tags(t *testing.T) {
	c := Complete("hi")
	if c.IsStream() || c.Text() != "hi" || c.Stream() != nil {
		t.Errorf("Complete = %+v", c)
	}

	s := Streaming(&sliceStream{})
	if !s.IsStream() || s.Text() != "" {
		t.Errorf("Streaming = %+v", s)
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()

	text, err := Collect(ctx, Complete("whole"))
	if err != nil || text != "whole" {
		t.Errorf("Collect(Complete) = %q, %v", text, err)
	}

	st := &sliceStream{chunks: []string{"Hel", "lo, ", " world"}}
	text, err = Collect(ctx, Streaming(st))
	if err != nil || text != "Hello,  world" {
		t.Errorf("Collect(stream) = %q, %v", text, err)
	}
	if st.closed != 1 {
		t.Errorf("stream closed %d times, want 1", st.closed)
	}

	boom := errors.New("boom")
	text, err = Collect(ctx, Streaming(&sliceStream{chunks: []string{"part"}, err: boom}))
	if !errors.Is(err, boom) || text != "part" {
		t.Errorf("Collect(failing) = %q, %v", text, err)
	}
}

func TestTurnsFrom(t *testing.T) {
	if TurnsFrom(nil) != nil {
		t.Error("empty history should be nil")
	}
	turns := TurnsFrom([]model.Message{
		model.NewUserMessage("q"),
		model.NewAssistantMessage("a", "gpt-4o"),
	})
	if len(turns) != 2 || turns[0] != (Turn{"user", "q"}) || turns[1] != (Turn{"assistant", "a"}) {
		t.Errorf("turns = %+v", turns)
	}
}
