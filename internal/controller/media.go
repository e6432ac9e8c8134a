// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"fmt"

	"golang.org/x/text/language"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
)

// Captions for media-derived messages.
const (
	ExtractedPrefix = "Extracted text from image:\n\n"
	VisionCaption   = "I took this picture:"
)

// =============================================================================
// IMAGE TO TEXT
// =============================================================================

// ExtractText runs text extraction on img and appends the result as an
// assistant message. On failure nothing is appended and an error notice is
// emitted.
func (c *Controller) ExtractText(ctx context.Context, img provider.ImageInput) (model.Message, error) {
	if len(img.Data) == 0 {
		return model.Message{}, ErrUnsupportedImage
	}

	text, err := c.provider.ImageToText(ctx, img)
	if err != nil {
		c.log.Error().Err(err).Str("op", OpImageToText).Str("image", img.Name).Msg("provider call failed")
		c.Notify(NoticeError, titleError, descExtractFailed)
		return model.Message{}, &CollaboratorError{Op: OpImageToText, Err: err}
	}

	var msg model.Message
	c.update(func() bool {
		msg = model.NewAssistantMessage(ExtractedPrefix+text, c.model)
		c.conv.Append(msg)
		return true
	})
	return msg, nil
}

// AddVisionCapture records a captured picture and its description as a user
// image message followed by an assistant message.
func (c *Controller) AddVisionCapture(imageURL, description string) error {
	if imageURL == "" {
		return ErrUnsupportedImage
	}
	c.update(func() bool {
		c.conv.Append(
			model.NewImageMessage(model.RoleUser, VisionCaption, imageURL),
			model.NewAssistantMessage(description, c.model),
		)
		return true
	})
	return nil
}

// =============================================================================
// TEXT TO SPEECH
// =============================================================================

// Speak converts the content of message id to audio. lang is a BCP 47 tag;
// empty uses the configured default. Results are cached per text and
// language.
func (c *Controller) Speak(ctx context.Context, id, lang string) (provider.Audio, error) {
	if lang == "" {
		lang = c.opts.Language
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return provider.Audio{}, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	lang = tag.String()

	c.mu.Lock()
	msg, ok := c.conv.Get(id)
	c.mu.Unlock()
	if !ok {
		return provider.Audio{}, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}

	key := lang + "\x00" + msg.Content
	if audio, hit := c.speech.Get(key); hit {
		return audio, nil
	}

	audio, err := c.provider.TextToSpeech(ctx, msg.Content, lang)
	if err != nil {
		c.log.Error().Err(err).Str("op", OpTextToSpeech).Str("message_id", id).Msg("provider call failed")
		c.Notify(NoticeError, titleError, descSpeechFailed)
		return provider.Audio{}, &CollaboratorError{Op: OpTextToSpeech, MessageID: id, Err: err}
	}

	c.speech.SetWithTTL(key, audio, int64(len(audio.Src)), c.opts.SpeechCacheTTL)
	c.speech.Wait()
	return audio, nil
}
