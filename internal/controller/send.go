// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
)

// ImageCaptionPrefix starts the caption of a pending image message.
const ImageCaptionPrefix = "Generating image from: "

// =============================================================================
// SEND
// =============================================================================

// SendPrompt appends a user message for text and a pending assistant
// message, then asks the provider to fill the latter in. Both messages are
// visible to subscribers before the provider is called.
//
// It blocks until the reply is complete or fails. Text that is empty after
// trimming returns ErrEmptyPrompt and changes nothing. A provider failure
// returns a *CollaboratorError; the messages stay in the log.
func (c *Controller) SendPrompt(ctx context.Context, text string, mode Mode) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPrompt
	}
	if c.ctx.Err() != nil {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	var (
		pending model.Message
		opts    provider.ChatOptions
	)
	c.update(func() bool {
		modelID := c.model
		if mode == ModeTextToImage {
			pending = model.NewPendingImage(ImageCaptionPrefix+text, modelID)
		} else {
			pending = model.NewPendingAssistant(modelID)
			opts = c.chatOptionsLocked()
		}
		c.conv.Append(model.NewUserMessage(text), pending)
		c.draft = ""
		c.inflight++
		return true
	})
	defer c.update(func() bool {
		c.inflight--
		return true
	})

	if mode == ModeTextToImage {
		return c.generateImage(ctx, pending.ID, text)
	}
	return c.chat(ctx, pending.ID, text, opts)
}

// chatOptionsLocked builds the request for the current settings. History is
// taken before the new exchange is appended.
func (c *Controller) chatOptionsLocked() provider.ChatOptions {
	opts := provider.ChatOptions{
		Model:   c.model,
		Stream:  c.settings.StreamEnabled,
		History: provider.TurnsFrom(c.conv.History()),
	}
	if c.settings.FunctionCallingEnabled {
		opts.Tools = c.tools.Schemas()
	}
	return opts
}

// chat dispatches the request and folds the reply into message id.
func (c *Controller) chat(ctx context.Context, id, prompt string, opts provider.ChatOptions) error {
	log := c.log.With().Str("message_id", id).Str("model", opts.Model).Logger()

	res, err := c.provider.Chat(ctx, prompt, opts)
	if err != nil {
		return c.fail(id, OpChat, err)
	}

	switch {
	case opts.Stream && res.IsStream():
		return c.consume(ctx, id, res.Stream())

	case res.IsStream():
		// Not requested: read it all and set the content once.
		text, err := provider.Collect(ctx, res)
		if err != nil {
			return c.fail(id, OpChat, err)
		}
		c.complete(id, text)
		return nil

	default:
		if opts.Stream {
			log.Warn().Err(ErrStreamProtocolMismatch).Msg("stream requested")
		}
		c.complete(id, res.Text())
		return nil
	}
}

// consume appends each chunk to message id in order, publishing after each.
func (c *Controller) consume(ctx context.Context, id string, s provider.Stream) error {
	defer s.Close()

	for {
		chunk, err := s.Recv(ctx)
		if errors.Is(err, io.EOF) {
			c.update(func() bool {
				return c.conv.Update(id, func(m *model.Message) {
					m.State = model.StateComplete
				})
			})
			return nil
		}
		if err != nil {
			return c.fail(id, OpChat, err)
		}
		if chunk.Text == "" {
			continue
		}

		present := c.update(func() bool {
			return c.conv.Update(id, func(m *model.Message) {
				m.Content += chunk.Text
				m.State = model.StateStreaming
			})
		})
		if !present {
			c.log.Debug().Str("message_id", id).Msg("message deleted, abandoning stream")
			return nil
		}
	}
}

// generateImage resolves the pending image message id in place.
func (c *Controller) generateImage(ctx context.Context, id, prompt string) error {
	img, err := c.provider.TextToImage(ctx, prompt)
	if err == nil && img.Src == "" {
		err = errors.New("image result has no source")
	}
	if err != nil {
		return c.fail(id, OpTextToImage, err)
	}

	c.update(func() bool {
		return c.conv.Update(id, func(m *model.Message) {
			m.ImageURL = img.Src
			m.State = model.StateComplete
		})
	})
	return nil
}

func (c *Controller) complete(id, text string) {
	c.update(func() bool {
		return c.conv.Update(id, func(m *model.Message) {
			m.Content = text
			m.State = model.StateComplete
		})
	})
}

// fail marks message id failed, keeping whatever content it has, and
// emits an error notice.
func (c *Controller) fail(id, op string, err error) error {
	desc := descChatFailed
	if op == OpTextToImage {
		desc = descImageFailed
	}

	c.log.Error().Err(err).Str("op", op).Str("message_id", id).Msg("provider call failed")
	c.update(func() bool {
		c.conv.Update(id, func(m *model.Message) {
			m.State = model.StateFailed
		})
		c.noticeLocked(NoticeError, titleError, desc)
		return true
	})
	return &CollaboratorError{Op: op, MessageID: id, Err: err}
}
