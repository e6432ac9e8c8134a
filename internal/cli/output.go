// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/tools"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data is the command-specific payload.
	Data any `json:"data"`

	// Error is the message when Success is false.
	Error     *string `json:"error"`
	ErrorType string  `json:"error_type,omitempty"`

	// Timestamp is RFC3339 UTC.
	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// COMMAND PAYLOADS
// =============================================================================

// AskData is the payload of "ask".
type AskData struct {
	Prompt   string `json:"prompt"`
	Mode     string `json:"mode"`
	Model    string `json:"model"`
	Response string `json:"response,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Duration string `json:"duration"`
}

// ToolData is one row of "tools list".
type ToolData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// ToolsData converts a tool set for output.
func ToolsData(set tools.Set) []ToolData {
	list := set.List()
	out := make([]ToolData, len(list))
	for i, t := range list {
		out[i] = ToolData{ID: t.ID, Name: t.Name, Description: t.Description, Enabled: t.Enabled}
	}
	return out
}

// TranscriptData is one row of "export" without an id.
type TranscriptData struct {
	ID           string `json:"id"`
	Summary      string `json:"summary"`
	Model        string `json:"model"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

// TranscriptsData converts transcript metadata for output.
func TranscriptsData(metas []storage.TranscriptMeta) []TranscriptData {
	out := make([]TranscriptData, len(metas))
	for i, m := range metas {
		out[i] = TranscriptData{
			ID:           m.ID,
			Summary:      m.Summary,
			Model:        m.Model,
			MessageCount: m.MessageCount,
			UpdatedAt:    m.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out
}

// ExportData is the payload of "export ID".
type ExportData struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Path   string `json:"path"`
}

// VersionData is the payload of "version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// ModelData is one row of a model listing.
type ModelData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Capabilities string `json:"capabilities"`
	Current      bool   `json:"current"`
}

// ModelsData converts the model catalog for output.
func ModelsData(models []model.ModelInfo, current string) []ModelData {
	out := make([]ModelData, len(models))
	for i, m := range models {
		out[i] = ModelData{ID: m.ID, Name: m.Name, Capabilities: m.CapabilitiesString(), Current: m.ID == current}
	}
	return out
}
