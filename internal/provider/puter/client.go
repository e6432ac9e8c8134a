// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package puter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// MaxResponseSize caps non-streaming response bodies.
const MaxResponseSize = 10 * 1024 * 1024

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the hosted API.
type ClientError struct {
	Type    ErrorType
	Status  int
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Status == 0 && t.Cause == nil
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnauthorized
	ErrTypeTimeout
	ErrTypeRateLimited
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeServer
	ErrTypeModelNotFound
)

// Sentinel errors for easy checking.
var (
	ErrUnauthorized    = &ClientError{Type: ErrTypeUnauthorized, Message: "not signed in"}
	ErrTimeout         = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrRateLimited     = &ClientError{Type: ErrTypeRateLimited, Message: "rate limited"}
	ErrInvalidResponse = &ClientError{Type: ErrTypeInvalidResponse, Message: "invalid response"}
	ErrModelNotFound   = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the client.
type Config struct {
	// BaseURL is the API root (default: https://api.puter.com)
	BaseURL string

	// Token is the bearer token for the session. Empty means signed out.
	Token string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// RequestsPerSecond and Burst shape outgoing traffic (default: 5/s, burst 10)
	RequestsPerSecond float64
	Burst             int

	Logger zerolog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://api.puter.com",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 5,
		Burst:             10,
		Logger:            zerolog.Nop(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the hosted API. It implements provider.Provider and is
// safe for concurrent use.
type Client struct {
	config  *Config
	limiter *rate.Limiter
	log     zerolog.Logger

	// httpClient carries the request timeout; streamClient has none and is
	// bounded by the request context.
	httpClient   *http.Client
	streamClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a client. Zero fields of config take defaults.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst == 0 {
		config.Burst = def.Burst
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		config:       config,
		limiter:      rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		log:          config.Logger.With().Str("component", "puter").Logger(),
		httpClient:   &http.Client{Transport: transport, Timeout: config.Timeout},
		streamClient: &http.Client{Transport: transport},
		token:        config.Token,
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// =============================================================================
// DRIVER CALLS
// =============================================================================

// driverCall is the envelope for POST /drivers/call.
type driverCall struct {
	Interface string `json:"interface"`
	Driver    string `json:"driver,omitempty"`
	Method    string `json:"method"`
	Args      any    `json:"args"`
}

// driverResult is the JSON envelope of a non-streaming reply.
type driverResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call posts a driver call and returns the open response after checking
// the status. The caller closes the body.
func (c *Client) call(ctx context.Context, hc *http.Client, dc driverCall) (*http.Response, error) {
	body, err := json.Marshal(dc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, hc, http.MethodPost, "/drivers/call", bytes.NewReader(body))
}

// do sends a request through the rate limiter.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &ClientError{Type: ErrTypeRateLimited, Message: "rate limiter", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/event-stream, application/x-ndjson")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, errorFromResponse(resp.StatusCode, data)
	}
	return resp, nil
}

// decodeResult reads a JSON envelope and decodes its result into v.
func decodeResult(resp *http.Response, v any) error {
	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	var env driverResult
	if err := json.Unmarshal(data, &env); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to parse response", Cause: err}
	}
	if env.Error != nil || (!env.Success && len(env.Result) == 0) {
		msg := "request failed"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return &ClientError{Type: ErrTypeServer, Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(env.Result, v); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "unexpected result shape", Cause: err}
	}
	return nil
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to read response", Cause: err}
	}
	if len(body) > MaxResponseSize {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: fmt.Sprintf("response exceeded %d bytes", MaxResponseSize)}
	}
	return body, nil
}

// errorFromResponse converts HTTP error responses to ClientErrors.
func errorFromResponse(status int, body []byte) error {
	msg := http.StatusText(status)
	var env driverResult
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		msg = env.Error.Message
	}

	t := ErrTypeServer
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrTypeUnauthorized
	case status == http.StatusNotFound:
		t = ErrTypeModelNotFound
	case status == http.StatusTooManyRequests:
		t = ErrTypeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		t = ErrTypeTimeout
	case status < 500:
		t = ErrTypeUnknown
	}
	return &ClientError{Type: t, Status: status, Message: msg}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
