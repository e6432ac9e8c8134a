// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports transcripts to a single self-contained HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *storage.Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	theme, _ := settings.ParseTheme(e.options.Theme)
	palette := palettes[theme]

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Summary))
	sb.WriteString("    <meta name=\"generator\" content=\"puterchat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.CreatedAt.Format(time.RFC3339))
	sb.WriteString(css(palette))
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(t))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range t.Messages {
		sb.WriteString(e.renderMessage(msg, palette))
	}
	sb.WriteString("        </main>\n")

	fmt.Fprintf(&sb, "        <footer class=\"footer\">Exported from <strong>puterchat</strong> on %s</footer>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(t *storage.Transcript) string {
	var sb strings.Builder
	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(t.Summary))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(t.Model))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(t.CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(t.Messages))
	sb.WriteString("            </div>\n        </header>\n")
	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message, p palette) string {
	var sb strings.Builder

	classes := fmt.Sprintf("message %s-message", html.EscapeString(string(msg.Role)))
	if msg.State == model.StateFailed {
		classes += " failed"
	}
	fmt.Fprintf(&sb, "            <div class=\"%s\" id=\"msg-%s\">\n", classes, html.EscapeString(msg.ID))

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", roleLabel(msg.Role))
	if msg.Model != "" {
		fmt.Fprintf(&sb, "                    <span class=\"model\">%s</span>\n", html.EscapeString(msg.Model))
	}
	if e.options.IncludeTimestamps {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(formatContent(msg.Content, p.CodeStyle))
	if msg.HasImage() {
		fmt.Fprintf(&sb, "\n<figure><img src=\"%s\" alt=\"%s\"></figure>",
			html.EscapeString(msg.ImageURL), html.EscapeString(msg.Content))
	}
	if msg.State == model.StateFailed {
		sb.WriteString("\n<p class=\"status\">failed</p>")
	}
	sb.WriteString("\n                </div>\n            </div>\n")

	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var (
	codeBlockRegex  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// formatContent turns fenced code blocks into highlighted HTML and the
// surrounding text into escaped paragraphs.
func formatContent(content, codeStyle string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range codeBlockRegex.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(paragraphs(content[last:loc[0]]))
		lang := content[loc[2]:loc[3]]
		code := content[loc[4]:loc[5]]
		sb.WriteString(highlight(code, lang, codeStyle))
		last = loc[1]
	}
	sb.WriteString(paragraphs(content[last:]))
	return sb.String()
}

func paragraphs(text string) string {
	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		escaped := html.EscapeString(para)
		escaped = inlineCodeRegex.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(&sb, "<p>%s</p>\n", escaped)
	}
	return sb.String()
}

// highlight renders code with inline styles. Unknown languages are
// analysed, then fall back to plain text.
func highlight(code, lang, styleName string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>\n", label, html.EscapeString(code))
	}
	var sb strings.Builder
	formatter := chromahtml.New(chromahtml.TabWidth(4))
	if err := formatter.Format(&sb, style, it); err != nil {
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>\n", label, html.EscapeString(code))
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>\n", label, sb.String())
}

// =============================================================================
// THEMES
// =============================================================================

type palette struct {
	Background string
	Surface    string
	Text       string
	Muted      string
	Accent     string
	User       string
	Assistant  string
	Error      string
	CodeStyle  string
}

var palettes = map[settings.Theme]palette{
	settings.ThemeLight: {
		Background: "#f6f7f9", Surface: "#ffffff", Text: "#1f2328", Muted: "#656d76",
		Accent: "#0969da", User: "#ddf4ff", Assistant: "#ffffff", Error: "#cf222e",
		CodeStyle: "github",
	},
	settings.ThemeDark: {
		Background: "#0d1117", Surface: "#161b22", Text: "#e6edf3", Muted: "#8b949e",
		Accent: "#58a6ff", User: "#1f2a3a", Assistant: "#161b22", Error: "#f85149",
		CodeStyle: "github-dark",
	},
	settings.ThemeSunset: {
		Background: "#2b1b2f", Surface: "#3d2540", Text: "#fde8d7", Muted: "#d9a48f",
		Accent: "#ff8c42", User: "#5a2d4a", Assistant: "#3d2540", Error: "#ff5d73",
		CodeStyle: "monokai",
	},
	settings.ThemeGrey: {
		Background: "#2e2e2e", Surface: "#3a3a3a", Text: "#e0e0e0", Muted: "#a0a0a0",
		Accent: "#c0c0c0", User: "#474747", Assistant: "#3a3a3a", Error: "#ff6b6b",
		CodeStyle: "bw",
	},
	settings.ThemeMulticolored: {
		Background: "#101030", Surface: "#1c1c48", Text: "#f5f5ff", Muted: "#a8a8e0",
		Accent: "#ff4fd8", User: "#1e4d5c", Assistant: "#3a1f5c", Error: "#ff5555",
		CodeStyle: "dracula",
	},
}

func css(p palette) string {
	return fmt.Sprintf(`    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { background: %[1]s; color: %[3]s; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header { border-bottom: 2px solid %[5]s; margin-bottom: 2rem; padding-bottom: 1rem; }
        .header h1 { font-size: 1.6rem; margin-bottom: 0.5rem; }
        .metadata { display: flex; flex-wrap: wrap; gap: 1rem; color: %[4]s; font-size: 0.9rem; }
        .message { background: %[2]s; border-radius: 8px; margin-bottom: 1rem; padding: 1rem 1.25rem; }
        .user-message { background: %[6]s; border-left: 4px solid %[5]s; }
        .assistant-message { background: %[7]s; }
        .failed { border-left: 4px solid %[8]s; }
        .message-header { display: flex; gap: 0.75rem; align-items: baseline; margin-bottom: 0.5rem; }
        .role-label { font-weight: 600; }
        .model, .timestamp { color: %[4]s; font-size: 0.8rem; }
        .message-content p { margin-bottom: 0.75rem; }
        .message-content img { max-width: 100%%; border-radius: 6px; }
        .status { color: %[8]s; font-style: italic; }
        .code-block { margin: 0.75rem 0; overflow-x: auto; border-radius: 6px; }
        .code-block pre { padding: 0.75rem; }
        .code-lang { color: %[4]s; font-size: 0.75rem; text-transform: uppercase; }
        .inline-code { font-family: "SFMono-Regular", Consolas, monospace; padding: 0 0.25rem; border-radius: 3px; background: %[1]s; }
        .footer { color: %[4]s; font-size: 0.8rem; text-align: center; margin-top: 2rem; }
    </style>
`, p.Background, p.Surface, p.Text, p.Muted, p.Accent, p.User, p.Assistant, p.Error)
}
