// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package puter provides the HTTP client for the hosted Puter API.
//
// Every capability goes through the driver endpoint (POST /drivers/call)
// with an interface name, a method and its arguments. Requests pass a
// token bucket (golang.org/x/time/rate) before leaving the process. Nothing
// is retried: a failed call surfaces as a ClientError and the user decides
// whether to resend.
//
// # Streaming
//
// A chat call with Stream set may be answered with text/event-stream (SSE,
// terminated by [DONE]) or application/x-ndjson. Either is exposed as a
// provider.Stream. A plain JSON body is returned as a complete result.
package puter
