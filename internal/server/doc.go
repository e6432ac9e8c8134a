// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes a chat controller to browsers and scripts over
// HTTP and a websocket.
//
// # Endpoints
//
//   - GET    /health                       - Health check (no auth)
//   - GET    /ws                           - Snapshot push, draft and send frames
//   - GET    /api/snapshot                 - Current controller snapshot
//   - POST   /api/messages                 - Send a prompt ({text, mode, wait})
//   - DELETE /api/messages                 - Clear the conversation
//   - DELETE /api/messages/{id}            - Delete a message and its partner
//   - POST   /api/messages/{id}/resend     - Copy a prompt back into the draft
//   - POST   /api/messages/{id}/speech     - Text to speech
//   - GET    /api/settings, PUT /api/settings
//   - GET    /api/models, POST /api/models/refresh, PUT /api/model
//   - PUT    /api/mode, POST /api/mode/toggle, PUT /api/draft
//   - GET    /api/tools, PUT /api/tools/{id}
//   - POST   /api/extract                  - Multipart image to text
//   - POST   /api/vision                   - Record a captured picture
//   - GET    /api/export?format=           - markdown, html or json download
//   - /api/transcripts, /api/auth          - When a store or session is given
//
// # Middleware
//
// Requests pass through request IDs, panic recovery, zerolog request logs,
// security headers, CORS, a per-client token bucket and bearer auth.
//
// # Usage
//
//	srv := server.New(ctrl, server.Options{Addr: ":8787", Token: token, Logger: log})
//	err := srv.Run(ctx)
package server
