// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/storage"
)

func sampleTranscript() *storage.Transcript {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	msg := func(id string, role model.Role, content string) model.Message {
		return model.Message{ID: id, Role: role, Content: content, Kind: model.KindText, Timestamp: at, State: model.StateComplete}
	}
	img := msg("3", model.RoleAssistant, "a red fox")
	img.Kind = model.KindImage
	img.ImageURL = "data:image/png;base64,AAAA"
	failed := msg("4", model.RoleAssistant, "")
	failed.State = model.StateFailed

	return &storage.Transcript{
		ID:        "conv_1",
		Summary:   "Code: <review>",
		Model:     "gpt-4o-mini",
		CreatedAt: at,
		UpdatedAt: at,
		Messages: []model.Message{
			msg("1", model.RoleUser, "Show me Go"),
			msg("2", model.RoleAssistant, "Here:\n\n```go\nfunc main() {}\n```\n\nUse `go run`."),
			img,
			failed,
		},
	}
}

// =============================================================================
// FORMAT LOOKUP TESTS
// =============================================================================

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"markdown", ".md"},
		{"MD", ".md"},
		{"html", ".html"},
		{"json", ".json"},
	}
	for _, tt := range tests {
		exp, err := ForFormat(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, exp.FileExtension(), tt.format)
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestValidation(t *testing.T) {
	empty := sampleTranscript()
	empty.Messages = nil
	noDate := sampleTranscript()
	noDate.CreatedAt = time.Time{}

	tests := []struct {
		name string
		in   *storage.Transcript
		want error
	}{
		{"nil", nil, ErrNilTranscript},
		{"empty", empty, ErrEmptyTranscript},
		{"no timestamp", noDate, ErrBadTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMarkdownExporter(nil).Export(tt.in)
			assert.ErrorIs(t, err, tt.want)
			_, err = NewHTMLExporter(nil).Export(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "title: \"Code: <review>\"")
	assert.Contains(t, md, "model: gpt-4o-mini")
	assert.Contains(t, md, "### You <sub>09:30:00</sub>")
	assert.Contains(t, md, "```go\nfunc main() {}\n```")
	assert.Contains(t, md, "![a red fox](data:image/png;base64,AAAA)")
	assert.Contains(t, md, "*(failed)*")
}

func TestHTMLExport(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "sunset"
	out, err := NewHTMLExporter(opts).Export(sampleTranscript())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<title>Code: &lt;review&gt;</title>")
	assert.Contains(t, page, `class="sunset-theme"`)
	assert.Contains(t, page, `<img src="data:image/png;base64,AAAA" alt="a red fox">`)
	assert.Contains(t, page, `<div class="code-lang">go</div>`)
	assert.Contains(t, page, `<code class="inline-code">go run</code>`)
	assert.Contains(t, page, "message assistant-message failed")
	assert.NotContains(t, page, "<review>")
}

func TestHTMLUnknownThemeFallsBack(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = "neon"
	out, err := NewHTMLExporter(opts).Export(sampleTranscript())
	require.NoError(t, err)
	assert.Contains(t, string(out), `class="dark-theme"`)
}

func TestJSONExportLoadsBack(t *testing.T) {
	in := sampleTranscript()
	out, err := NewJSONExporter(nil).Export(in)
	require.NoError(t, err)

	var back storage.Transcript
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, in.ID, back.ID)
	require.Len(t, back.Messages, len(in.Messages))
	assert.Equal(t, model.KindImage, back.Messages[2].Kind)
	assert.Equal(t, model.StateFailed, back.Messages[3].State)
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestExportToFile(t *testing.T) {
	opts := DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "out")

	path, err := ExportToFile(sampleTranscript(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)

	assert.Equal(t, ".md", filepath.Ext(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "conversation_Code-_-review-_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Code: <review>")
}

func TestConversation(t *testing.T) {
	conv := model.NewConversation()
	conv.Append(model.NewUserMessage("hello"), model.NewAssistantMessage("hi", "gpt-4o"))

	data, exp, err := Conversation(conv, "gpt-4o", "json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", exp.MimeType())
	assert.Contains(t, string(data), `"model": "gpt-4o"`)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "conversation"},
		{"plain", "plain"},
		{"a/b\\c", "a-b-c"},
		{"two words", "two_words"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
