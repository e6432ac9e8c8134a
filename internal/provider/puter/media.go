// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package puter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/jeranaias/puterchat/internal/provider"
)

// DefaultLanguage is used for speech when none is given.
const DefaultLanguage = "en-US"

// =============================================================================
// TEXT TO IMAGE
// =============================================================================

// TextToImage generates an image. The server may answer with raw image bytes,
// which become a data: URL, or with a JSON result carrying a URL.
func (c *Client) TextToImage(ctx context.Context, prompt string) (provider.Image, error) {
	resp, err := c.call(ctx, c.httpClient, driverCall{
		Interface: ifaceImage,
		Method:    "generate",
		Args:      map[string]string{"prompt": prompt},
	})
	if err != nil {
		return provider.Image{}, err
	}
	defer resp.Body.Close()

	if src, ok, err := binaryDataURL(resp, "image/"); ok || err != nil {
		return provider.Image{Src: src}, err
	}

	var result struct {
		URL string `json:"url"`
		Src string `json:"src"`
	}
	if err := decodeResult(resp, &result); err != nil {
		return provider.Image{}, err
	}
	src := result.URL
	if src == "" {
		src = result.Src
	}
	if src == "" {
		return provider.Image{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "image result has no url"}
	}
	return provider.Image{Src: src}, nil
}

// =============================================================================
// IMAGE TO TEXT
// =============================================================================

// ImageToText extracts text from an image.
func (c *Client) ImageToText(ctx context.Context, img provider.ImageInput) (string, error) {
	mimeType := img.MIME
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	source := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	resp, err := c.call(ctx, c.httpClient, driverCall{
		Interface: ifaceOCR,
		Method:    "recognize",
		Args:      map[string]string{"source": source},
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var raw json.RawMessage
	if err := decodeResult(resp, &raw); err != nil {
		return "", err
	}
	// The result is either a bare string or {"text": ...}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "unexpected ocr result", Cause: err}
	}
	return obj.Text, nil
}

// =============================================================================
// TEXT TO SPEECH
// =============================================================================

// TextToSpeech synthesizes speech and returns it as a data: URL.
func (c *Client) TextToSpeech(ctx context.Context, text, language string) (provider.Audio, error) {
	if language == "" {
		language = DefaultLanguage
	}
	resp, err := c.call(ctx, c.httpClient, driverCall{
		Interface: ifaceTTS,
		Method:    "synthesize",
		Args:      map[string]string{"text": text, "language": language},
	})
	if err != nil {
		return provider.Audio{}, err
	}
	defer resp.Body.Close()

	src, ok, err := binaryDataURL(resp, "audio/")
	if err != nil {
		return provider.Audio{}, err
	}
	if !ok {
		return provider.Audio{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "speech result is not audio"}
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return provider.Audio{MIME: mediaType, Src: src}, nil
}

// binaryDataURL reads the body as a data: URL when its media type starts
// with prefix. ok is false when the body is something else and was not read.
func binaryDataURL(resp *http.Response, prefix string) (string, bool, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, prefix) {
		return "", false, nil
	}
	data, err := readResponse(resp)
	if err != nil {
		return "", true, err
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), true, nil
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to parse response", Cause: err}
	}
	return nil
}
