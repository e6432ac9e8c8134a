// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the contracts puterchat needs from a hosted AI
// service.
//
// The controller depends only on these interfaces. Two implementations are
// selected at startup:
//
//   - provider/puter: HTTP client for the hosted API
//   - provider/fake: scripted in-memory provider used for tests and the
//     offline mock mode
//
// # Chat Results
//
// Chat returns a tagged ChatResult. Complete carries the whole reply;
// Streaming carries a Stream whose chunks must be read in order:
//
//	res, err := p.Chat(ctx, "hello", provider.ChatOptions{Model: "gpt-4o", Stream: true})
//	if err != nil {
//	    return err
//	}
//	if res.IsStream() {
//	    s := res.Stream()
//	    defer s.Close()
//	    for {
//	        chunk, err := s.Recv(ctx)
//	        if errors.Is(err, io.EOF) {
//	            break
//	        }
//	        ...
//	    }
//	}
package provider
