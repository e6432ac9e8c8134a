// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/export"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/tools"
)

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var (
		validation *controller.ValidationError
		collab     *controller.CollaboratorError
		mismatch   *controller.CapabilityMismatchError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, controller.ErrInvalidLanguage):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrUnknownMessage),
		errors.Is(err, controller.ErrUnknownModel),
		errors.Is(err, tools.ErrUnknownTool),
		errors.Is(err, storage.ErrTranscriptNotFound):
		return http.StatusNotFound
	case errors.As(err, &mismatch):
		return http.StatusConflict
	case errors.As(err, &collab):
		return http.StatusBadGateway
	case errors.Is(err, controller.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// ============================================================================
// HEALTH
// ============================================================================

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Clients       int    `json:"clients"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.start).Seconds()),
		Clients:       s.hub.Clients(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

// ============================================================================
// MESSAGES
// ============================================================================

// SendRequest is the body of POST /api/messages.
type SendRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`

	// Wait holds the response until the reply completes. Otherwise the
	// send runs in the background and progress arrives over /ws.
	Wait bool `json:"wait"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[SendRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.fail(w, controller.ErrEmptyPrompt)
		return
	}

	mode := s.ctrl.Mode()
	if req.Mode != "" {
		mode = controller.ParseMode(req.Mode)
	}

	if !req.Wait {
		go func() {
			if err := s.ctrl.SendPrompt(s.ctx, req.Text, mode); err != nil {
				s.log.Debug().Err(err).Msg("background send failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	if err := s.ctrl.SendPrompt(r.Context(), req.Text, mode); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	removed := s.ctrl.DeleteMessage(chi.URLParam(r, "id"))
	if removed == nil {
		s.fail(w, controller.ErrUnknownMessage)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"deleted": removed})
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	draft, ok := s.ctrl.ResendMessage(chi.URLParam(r, "id"))
	if !ok {
		s.fail(w, controller.ErrUnknownMessage)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": draft})
}

// SpeechRequest is the body of POST /api/messages/{id}/speech. An empty
// body uses the configured language.
type SpeechRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if r.ContentLength != 0 {
		var ok bool
		if req, ok = readJSON[SpeechRequest](w, r); !ok {
			return
		}
	}
	audio, err := s.ctrl.Speak(r.Context(), chi.URLParam(r, "id"), req.Language)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, audio)
}

// ============================================================================
// SETTINGS AND MODELS
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	next, ok := readJSON[settings.Settings](w, r)
	if !ok {
		return
	}
	s.ctrl.ApplySettings(next)
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"settings": snap.Settings, "model": snap.Model})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"selected": snap.Model, "models": snap.Models})
}

func (s *Server) handleRefreshModels(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RefreshModels(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("model refresh failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleModels(w, r)
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Model string `json:"model"`
	}](w, r)
	if !ok {
		return
	}
	if err := s.ctrl.SelectModel(req.Model); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": s.ctrl.Model()})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Mode string `json:"mode"`
	}](w, r)
	if !ok {
		return
	}
	s.ctrl.SetMode(controller.ParseMode(req.Mode))
	writeJSON(w, http.StatusOK, map[string]controller.Mode{"mode": s.ctrl.Mode()})
}

func (s *Server) handleToggleMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]controller.Mode{"mode": s.ctrl.ToggleMode()})
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Text string `json:"text"`
	}](w, r)
	if !ok {
		return
	}
	s.ctrl.SetDraft(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// TOOLS
// ============================================================================

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Tools().List())
}

func (s *Server) handleToggleTool(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Enabled bool `json:"enabled"`
	}](w, r)
	if !ok {
		return
	}
	tool, err := s.ctrl.ToggleTool(chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

// ============================================================================
// IMAGES
// ============================================================================

// handleExtract reads a multipart "image" field and runs image-to-text.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+MaxRequestBodySize)
	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form with an image field")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read image")
		return
	}
	if len(data) > MaxImageSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("image exceeds %d bytes", MaxImageSize))
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	msg, err := s.ctrl.ExtractText(r.Context(), provider.ImageInput{Name: header.Filename, MIME: mime, Data: data})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// VisionRequest is the body of POST /api/vision.
type VisionRequest struct {
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

func (s *Server) handleVision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[VisionRequest](w, r)
	if !ok {
		return
	}
	if err := s.ctrl.AddVisionCapture(req.ImageURL, req.Description); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// EXPORT AND TRANSCRIPTS
// ============================================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "markdown"
	}

	opts := export.DefaultOptions()
	opts.Theme = string(s.ctrl.Settings().Theme)
	conv := s.ctrl.Transcript()
	if conv.IsEmpty() {
		writeError(w, http.StatusNotFound, "conversation is empty")
		return
	}

	data, exp, err := export.Conversation(conv, s.ctrl.Model(), format, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", exp.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "conversation"+exp.FileExtension()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	metas, err := s.opts.Transcripts.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	conv := s.ctrl.Transcript()
	if conv.IsEmpty() {
		writeError(w, http.StatusBadRequest, "conversation is empty")
		return
	}
	id, err := s.opts.Transcripts.Save(storage.NewTranscript(conv, s.ctrl.Model()))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleLoadTranscript(w http.ResponseWriter, r *http.Request) {
	t, err := s.opts.Transcripts.Load(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Transcripts.Delete(chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// AUTH
// ============================================================================

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Session.GetStatus())
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	u, err := s.opts.Session.SignIn(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Session.SignOut(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
