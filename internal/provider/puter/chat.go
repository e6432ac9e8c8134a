// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package puter

import (
	"context"
	"mime"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/tools"
)

// Interface names on the driver endpoint.
const (
	ifaceChat  = "puter-chat-completion"
	ifaceImage = "puter-image-generation"
	ifaceOCR   = "puter-ocr"
	ifaceTTS   = "puter-tts"
)

// =============================================================================
// CHAT TYPES
// =============================================================================

type chatArgs struct {
	Messages []provider.Turn `json:"messages"`
	Model    string          `json:"model,omitempty"`
	Stream   bool            `json:"stream,omitempty"`
	Tools    []tools.Schema  `json:"tools,omitempty"`
}

type chatResult struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends prompt with the given history. When opts.Stream is set and the
// server answers with an event stream or NDJSON body, the result streams;
// a JSON body yields a complete result regardless of opts.Stream.
func (c *Client) Chat(ctx context.Context, prompt string, opts provider.ChatOptions) (provider.ChatResult, error) {
	messages := make([]provider.Turn, 0, len(opts.History)+1)
	messages = append(messages, opts.History...)
	messages = append(messages, provider.Turn{Role: model.RoleUser.String(), Content: prompt})

	hc := c.httpClient
	if opts.Stream {
		hc = c.streamClient
	}

	resp, err := c.call(ctx, hc, driverCall{
		Interface: ifaceChat,
		Method:    "complete",
		Args: chatArgs{
			Messages: messages,
			Model:    opts.Model,
			Stream:   opts.Stream,
			Tools:    opts.Tools,
		},
	})
	if err != nil {
		return provider.ChatResult{}, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/event-stream":
		return provider.Streaming(newStream(resp.Body, NewSSEReader(resp.Body))), nil
	case "application/x-ndjson":
		return provider.Streaming(newStream(resp.Body, newNDJSONReader(resp.Body))), nil
	}

	defer resp.Body.Close()
	var result chatResult
	if err := decodeResult(resp, &result); err != nil {
		return provider.ChatResult{}, err
	}
	return provider.Complete(result.Message.Content), nil
}

// =============================================================================
// MODELS
// =============================================================================

type modelsResponse struct {
	Models []struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Provider     string   `json:"provider"`
		Capabilities []string `json:"capabilities"`
	} `json:"models"`
}

// ListModels fetches the server's model list.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.do(ctx, c.httpClient, "GET", "/puterai/chat/models/details", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	var mr modelsResponse
	if err := unmarshal(data, &mr); err != nil {
		return nil, err
	}

	out := make([]model.ModelInfo, 0, len(mr.Models))
	for _, m := range mr.Models {
		info := model.ModelInfo{ID: m.ID, Name: m.Name, Provider: m.Provider}
		if info.Name == "" {
			info.Name = m.ID
		}
		for _, capability := range m.Capabilities {
			info.Capabilities = append(info.Capabilities, model.Capability(capability))
		}
		out = append(out, info)
	}
	return out, nil
}
