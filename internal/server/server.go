// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/session"
	"github.com/jeranaias/puterchat/internal/speech"
	"github.com/jeranaias/puterchat/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize limits JSON bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxImageSize limits uploaded images (10MB).
	MaxImageSize = 10 << 20

	// Version is the API version reported by /health.
	Version = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// ============================================================================
// OPTIONS
// ============================================================================

// Options configures a Server. Nil collaborators disable their routes.
type Options struct {
	Addr string

	// Token, when set, is required as a bearer token.
	Token string

	// CORS defaults to DefaultCORSConfig.
	CORS *CORSConfig

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// Session enables /api/auth.
	Session *session.Manager

	// Drafts receives websocket "draft" frames. When nil they go straight
	// to the controller draft.
	Drafts *speech.PushRecognizer

	// Transcripts enables /api/transcripts.
	Transcripts *storage.TranscriptStore

	Logger zerolog.Logger
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes a controller over HTTP and pushes snapshots over a
// websocket. It is a renderer: it only reads snapshots and calls controller
// operations.
type Server struct {
	opts   Options
	ctrl   *controller.Controller
	hub    *Hub
	router chi.Router
	log    zerolog.Logger
	start  time.Time

	// ctx outlives requests; sends started with wait=false run on it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server for ctrl.
func New(ctrl *controller.Controller, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.CORS == nil {
		opts.CORS = DefaultCORSConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:   opts,
		ctrl:   ctrl,
		log:    opts.Logger.With().Str("component", "server").Logger(),
		start:  time.Now(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.hub = NewHub(ctx, ctrl, opts.Drafts, opts.CORS.AllowedOrigins, s.log)
	s.router = s.routes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(s.log))
	r.Use(LoggingMiddleware(s.log))
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(s.opts.CORS))
	if s.opts.RateLimit > 0 {
		r.Use(RateLimitMiddleware(NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst), s.log))
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.Token, s.log))

		r.Get("/ws", s.hub.HandleWS)

		r.Route("/api", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)

			r.Route("/messages", func(r chi.Router) {
				r.Post("/", s.handleSend)
				r.Delete("/", s.handleClear)
				r.Delete("/{id}", s.handleDelete)
				r.Post("/{id}/resend", s.handleResend)
				r.Post("/{id}/speech", s.handleSpeak)
			})

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/models", s.handleModels)
			r.Post("/models/refresh", s.handleRefreshModels)
			r.Put("/model", s.handleSelectModel)

			r.Put("/mode", s.handleSetMode)
			r.Post("/mode/toggle", s.handleToggleMode)
			r.Put("/draft", s.handleSetDraft)

			r.Get("/tools", s.handleTools)
			r.Put("/tools/{id}", s.handleToggleTool)

			r.Post("/extract", s.handleExtract)
			r.Post("/vision", s.handleVision)

			r.Get("/export", s.handleExport)

			if s.opts.Transcripts != nil {
				r.Get("/transcripts", s.handleListTranscripts)
				r.Post("/transcripts", s.handleSaveTranscript)
				r.Get("/transcripts/{id}", s.handleLoadTranscript)
				r.Delete("/transcripts/{id}", s.handleDeleteTranscript)
			}

			if s.opts.Session != nil {
				r.Get("/auth", s.handleAuthStatus)
				r.Post("/auth/signin", s.handleSignIn)
				r.Post("/auth/signout", s.handleSignOut)
			}
		})
	})

	return r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Str("version", Version).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("server shutting down")
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close stops background sends and disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Close()
	s.cancel()
}

// ============================================================================
// HELPERS
// ============================================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// readJSON decodes a size-limited JSON body, answering 400 or 413 itself.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}
