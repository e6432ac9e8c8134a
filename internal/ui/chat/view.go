// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := m.viewport.View()
	if m.overlay != overlayNone {
		body = lipgloss.Place(m.width, m.viewport.Height,
			lipgloss.Center, lipgloss.Center, m.renderOverlay())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderNotice(),
		m.renderInput(),
		m.renderStatus(),
	)
}

func (m Model) renderHeader() string {
	t := m.theme
	title := t.HeaderTitle.Render("puterchat")

	mode := t.ModeChat.Render("chat")
	if m.snap.Mode == controller.ModeTextToImage {
		mode = t.ModeImage.Render("image")
	}
	parts := []string{m.snap.Model, mode}
	if m.user != nil {
		parts = append(parts, "@"+m.user.Username)
	}
	sub := t.HeaderSubtitle.Render(strings.Join(parts, " · "))

	w := max(m.width-t.Header.GetHorizontalBorderSize()-t.Header.GetHorizontalMargins(), 0)
	return t.Header.Width(w).Render(title + "  " + sub)
}

func (m Model) renderNotice() string {
	if m.notice == nil {
		return ""
	}
	style := m.theme.NoticeInfo
	if m.notice.Level == controller.NoticeError {
		style = m.theme.NoticeError
	}
	text := m.notice.Title
	if m.notice.Description != "" {
		text += ": " + m.notice.Description
	}
	return style.Render(util.TruncateWidth(text, max(m.width-4, 1)))
}

func (m Model) renderInput() string {
	prompt := m.theme.InputPrompt.Render("> ")
	if m.snap.Mode == controller.ModeTextToImage {
		prompt = m.theme.InputPrompt.Render("img> ")
	}
	return m.theme.InputContainer.Render(
		lipgloss.JoinHorizontal(lipgloss.Top, prompt, m.input.View()))
}

func (m Model) renderStatus() string {
	t := m.theme
	left := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status != "" {
		left = t.StatusValue.Render(m.status)
	}

	var right []string
	if m.sends > 0 || m.snap.Busy {
		right = append(right, m.spinner.View())
	}
	right = append(right,
		t.StatusKey.Render("stream ")+onOff(t.On, t.Off, m.snap.Settings.StreamEnabled),
		t.StatusKey.Render("fn ")+onOff(t.On, t.Off, m.snap.Settings.FunctionCallingEnabled),
	)
	r := strings.Join(right, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(r) - 2
	if gap < 1 {
		left = util.TruncateWidth(left, max(m.width-lipgloss.Width(r)-3, 0))
		gap = 1
	}
	return t.StatusBar.Render(left + strings.Repeat(" ", gap) + r)
}

func onOff(on, off lipgloss.Style, v bool) string {
	if v {
		return on.Render("on")
	}
	return off.Render("off")
}

// =============================================================================
// MESSAGES
// =============================================================================

// renderMessages renders the whole transcript for the viewport.
func (m Model) renderMessages(width int) string {
	if len(m.snap.Messages) == 0 {
		return m.theme.Muted.Render("\n  Start a conversation. F1 shows the key bindings.")
	}
	out := make([]string, 0, len(m.snap.Messages))
	for i, msg := range m.snap.Messages {
		out = append(out, m.renderMessage(msg, i == m.selected, width))
	}
	return strings.Join(out, "\n")
}

func (m Model) renderMessage(msg model.Message, selected bool, width int) string {
	t := m.theme

	bubble := t.AssistantBubble
	switch msg.Role {
	case model.RoleUser:
		bubble = t.UserBubble
	case model.RoleSystem:
		bubble = t.SystemBubble
	}
	if selected {
		bubble = bubble.BorderForeground(t.Palette.Warning)
	}
	inner := max(width-bubble.GetHorizontalFrameSize(), 10)

	label := t.RoleLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleAssistant && msg.Model != "" {
		label += " " + t.Muted.Render(msg.Model)
	}
	if !msg.Timestamp.IsZero() {
		label += " " + t.Muted.Render(msg.Timestamp.Format("15:04"))
	}

	return bubble.Width(inner + bubble.GetHorizontalPadding()).
		Render(label + "\n" + m.renderBody(msg, inner))
}

func (m Model) renderBody(msg model.Message, width int) string {
	t := m.theme

	var b strings.Builder
	switch {
	case msg.State == model.StatePending && msg.Content == "":
		b.WriteString(m.spinner.View() + " " + t.Pending.Render("Thinking..."))

	case msg.Kind == model.KindImage:
		b.WriteString(msg.Content)
		if msg.HasImage() {
			b.WriteString("\n" + t.ImageLink.Render(util.TruncateWidth(msg.ImageURL, width)))
		} else if msg.IsPending() {
			b.WriteString(" " + m.spinner.View())
		}

	case msg.Role == model.RoleAssistant && msg.State == model.StateComplete:
		b.WriteString(m.md.Render(msg.ID, msg.Content, m.theme.GlamourStyle(), width))

	case msg.State == model.StateStreaming:
		b.WriteString(msg.Content + " " + m.spinner.View())

	default:
		b.WriteString(msg.Content)
	}

	if msg.State == model.StateFailed {
		b.WriteString("\n" + t.Failed.Render("✗ failed, select and press C-r to resend"))
	}
	return b.String()
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) renderOverlay() string {
	t := m.theme
	var title string
	var rows []string

	switch m.overlay {
	case overlayModels:
		title = "Models"
		for _, info := range m.snap.Models {
			row := info.ID
			if caps := info.CapabilitiesString(); caps != "" {
				row += " " + t.Muted.Render(caps)
			}
			if info.ID == m.snap.Model {
				row += " " + t.On.Render("●")
			}
			rows = append(rows, row)
		}

	case overlayTools:
		title = "Tools"
		for _, tool := range m.snap.Tools {
			rows = append(rows, fmt.Sprintf("%s %s %s",
				onOff(t.On, t.Off, tool.Enabled),
				util.PadWidth(tool.Name, 12),
				t.Muted.Render(tool.Description)))
		}

	case overlaySettings:
		title = "Settings"
		s := m.snap.Settings
		values := []string{
			t.StatusValue.Render(string(s.Theme)),
			onOff(t.On, t.Off, s.StreamEnabled),
			onOff(t.On, t.Off, s.FunctionCallingEnabled),
		}
		for i, name := range settingsRows {
			rows = append(rows, util.PadWidth(name, 18)+values[i])
		}

	case overlayHelp:
		help := m.help
		help.ShowAll = true
		lines := []string{help.FullHelpView(m.keys.FullHelp()), ""}
		for _, c := range Commands() {
			lines = append(lines, fmt.Sprintf("/%s %s  %s",
				c.Name, c.Args, t.Muted.Render(c.Help)))
		}
		return t.Overlay.Render(t.OverlayTitle.Render("Help") + "\n" + strings.Join(lines, "\n"))
	}

	for i := range rows {
		if i == m.cursor {
			rows[i] = t.ListSelected.Render("> " + rows[i])
		} else {
			rows[i] = t.ListItem.Render(rows[i])
		}
	}
	hint := t.Muted.Render("↑/↓ move · Enter choose · Esc close")
	return t.Overlay.Render(t.OverlayTitle.Render(title) + "\n" + strings.Join(rows, "\n") + "\n\n" + hint)
}
