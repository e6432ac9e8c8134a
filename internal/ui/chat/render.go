// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// maxCached bounds rendered replies kept between frames.
const maxCached = 256

type mdKey struct {
	id      string
	content string
}

// markdown renders assistant replies with glamour. Renderers are rebuilt
// when the style or wrap width changes; output is cached per message.
type markdown struct {
	style string
	width int
	r     *glamour.TermRenderer
	cache map[mdKey]string
}

func newMarkdown() *markdown {
	return &markdown{cache: make(map[mdKey]string)}
}

// Render returns content as styled terminal text. Errors fall back to the
// raw content.
func (md *markdown) Render(id, content, style string, width int) string {
	if width < 20 {
		width = 20
	}
	if md.r == nil || style != md.style || width != md.width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		md.r, md.style, md.width = r, style, width
		md.cache = make(map[mdKey]string)
	}

	k := mdKey{id, content}
	if out, ok := md.cache[k]; ok {
		return out
	}
	out, err := md.r.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	if len(md.cache) >= maxCached {
		md.cache = make(map[mdKey]string)
	}
	md.cache[k] = out
	return out
}
