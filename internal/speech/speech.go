// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrListening is returned when a recognizer is already feeding a listener.
var ErrListening = errors.New("speech recognition already running")

// Transcript is one recognition result. Interim results may be revised by
// later ones; Final marks the end of an utterance.
type Transcript struct {
	Text  string
	Final bool
}

// Recognizer produces transcripts until ctx is done or input ends, then
// closes the channel.
type Recognizer interface {
	Listen(ctx context.Context) (<-chan Transcript, error)
}

// Drafter receives recognized text. *controller.Controller implements it.
type Drafter interface {
	SetDraft(text string)
}

// =============================================================================
// LISTENER
// =============================================================================

// Listener copies transcripts into the draft prompt. It never sends.
type Listener struct {
	rec   Recognizer
	draft Drafter
	log   zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewListener creates a listener feeding draft from rec.
func NewListener(rec Recognizer, draft Drafter, log zerolog.Logger) *Listener {
	return &Listener{rec: rec, draft: draft, log: log.With().Str("component", "speech").Logger()}
}

// Run blocks until the recognizer stops or ctx is done. Each transcript
// replaces the draft.
func (l *Listener) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrListening
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	ch, err := l.rec.Listen(ctx)
	if err != nil {
		return err
	}
	l.log.Debug().Msg("listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ch:
			if !ok {
				l.log.Debug().Msg("recognizer stopped")
				return ctx.Err()
			}
			text := strings.TrimSpace(t.Text)
			if text == "" {
				continue
			}
			l.draft.SetDraft(text)
			if t.Final {
				l.log.Debug().Int("chars", len(text)).Msg("utterance recognized")
			}
		}
	}
}

// Running reports whether Run is active.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// =============================================================================
// PUSH RECOGNIZER
// =============================================================================

// PushRecognizer is fed by an external source, such as a browser doing the
// recognition and relaying results over a websocket.
type PushRecognizer struct {
	mu sync.Mutex
	ch chan Transcript
}

// NewPushRecognizer creates a recognizer buffering up to size transcripts.
func NewPushRecognizer(size int) *PushRecognizer {
	if size <= 0 {
		size = 16
	}
	return &PushRecognizer{ch: make(chan Transcript, size)}
}

// Listen implements Recognizer. The channel closes when ctx is done.
func (p *PushRecognizer) Listen(ctx context.Context) (<-chan Transcript, error) {
	out := make(chan Transcript)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-p.ch:
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Push queues a transcript. It reports false when the buffer is full and
// the transcript was dropped.
func (p *PushRecognizer) Push(t Transcript) bool {
	select {
	case p.ch <- t:
		return true
	default:
		return false
	}
}
