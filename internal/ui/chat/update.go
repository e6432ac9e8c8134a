// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/session"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/ui/styles"
)

// Layout rows outside the viewport.
const (
	headerHeight = 3
	inputHeight  = 5
	noticeHeight = 1
	statusHeight = 1
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.resize()
		m.refresh(true)
		return m, nil

	case snapshotMsg:
		cmd := m.applySnapshot(msg.snap)
		return m, tea.Batch(m.waitForSnapshot(), cmd)

	case sendDoneMsg:
		m.sends--
		if msg.err != nil && !errors.Is(msg.err, controller.ErrEmptyPrompt) {
			m.status = "send failed: " + msg.err.Error()
		}
		return m, nil

	case speechMsg:
		if msg.err != nil {
			m.status = "speech failed: " + msg.err.Error()
		} else {
			m.status = "audio saved to " + msg.path
		}
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "exported to " + msg.path
		}
		return m, nil

	case extractMsg:
		if msg.err != nil {
			m.status = "extract failed: " + msg.err.Error()
		}
		return m, nil

	case refreshMsg:
		if msg.err != nil {
			m.status = "model refresh failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("%d models available", len(m.ctrl.Snapshot().Models))
		}
		return m, nil

	case signOutMsg:
		if msg.err == nil {
			m.user = nil
		}
		return m, nil

	case session.UserMsg:
		if msg.Err != nil {
			m.user = nil
			if !errors.Is(msg.Err, session.ErrNotSignedIn) {
				m.log.Debug().Err(msg.Err).Msg("identity lookup failed")
			}
			return m, nil
		}
		u := msg.User
		m.user = &u
		return m, nil

	case noticeExpiredMsg:
		if m.notice != nil && m.notice.Seq == msg.seq {
			m.notice = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.hasPending() {
			m.refresh(false)
		}
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.overlay != overlayNone {
			return m.handleOverlayKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

// applySnapshot renders snap and picks up any new notice.
func (m *Model) applySnapshot(snap controller.Snapshot) tea.Cmd {
	if snap.Version < m.snap.Version {
		return nil
	}
	if snap.Settings.Theme != m.snap.Settings.Theme || m.theme == nil {
		m.theme = m.opts.ThemeFactory(string(snap.Settings.Theme))
	}
	prev := m.selectedID()
	m.snap = snap
	m.selected = m.indexOf(prev)

	// The snapshot may be older than keystrokes already handled, so compare
	// against the live draft.
	if live := m.ctrl.Draft(); live != m.syncedDraft {
		m.syncedDraft = live
		m.input.SetValue(live)
	}

	var cmd tea.Cmd
	if n, ok := snap.LastNotice(); ok && n.Seq > m.noticeSeq {
		m.noticeSeq = n.Seq
		m.notice = &n
		cmd = expireNotice(n.Seq)
	}

	m.refresh(false)
	return cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.openOverlay(overlayHelp)
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m, m.submit()

	case key.Matches(msg, m.keys.ToggleMode):
		mode := m.ctrl.ToggleMode()
		m.status = "mode: " + modeLabel(mode)
		return m, nil

	case key.Matches(msg, m.keys.SelectPrev):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.SelectNext):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Deselect):
		m.selected = -1
		m.refresh(false)
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id, ok := m.Selected(); ok {
			m.ctrl.DeleteMessage(id)
			m.selected = -1
		}
		return m, nil

	case key.Matches(msg, m.keys.Resend):
		if id, ok := m.Selected(); ok {
			m.resend(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Speak):
		if id, ok := m.Selected(); ok {
			return m, m.speak(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Models):
		m.openOverlay(overlayModels)
		return m, nil

	case key.Matches(msg, m.keys.Tools):
		m.openOverlay(overlayTools)
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.openOverlay(overlaySettings)
		return m, nil

	case key.Matches(msg, m.keys.Export):
		return m, m.export(m.opts.ExportFormat)

	case key.Matches(msg, m.keys.Clear):
		m.ctrl.Clear()
		m.selected = -1
		return m, nil

	case key.Matches(msg, m.keys.SignIn):
		if m.sess == nil {
			return m, nil
		}
		m.status = "signing in..."
		return m, m.sess.SignInCmd(m.ctx)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.syncDraft()
	return m, cmd
}

// syncDraft pushes the input text to the controller when it changed.
func (m *Model) syncDraft() {
	if v := m.input.Value(); v != m.syncedDraft {
		m.syncedDraft = v
		m.ctrl.SetDraft(v)
	}
}

// submit sends the input, or runs it as a slash command.
func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if isCommand(text) {
		m.input.Reset()
		m.syncDraft()
		return m.runCommand(text)
	}
	if isBlank(text) {
		return nil
	}

	mode := m.snap.Mode
	m.input.Reset()
	m.syncedDraft = ""
	m.selected = -1
	m.status = ""
	m.sends++

	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.SendPrompt(ctx, text, mode)}
	}
}

func (m *Model) resend(id string) {
	candidate, ok := m.ctrl.ResendMessage(id)
	if !ok {
		m.status = "nothing to resend"
		return
	}
	m.syncedDraft = candidate
	m.input.SetValue(candidate)
	m.input.CursorEnd()
	m.selected = -1
	m.refresh(false)
}

func (m *Model) moveSelection(delta int) {
	n := len(m.snap.Messages)
	if n == 0 {
		m.selected = -1
		return
	}
	switch {
	case m.selected < 0 && delta < 0:
		m.selected = n - 1
	case m.selected < 0:
		m.selected = 0
	default:
		m.selected += delta
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	m.refresh(false)
}

func (m Model) selectedID() string {
	id, _ := m.Selected()
	return id
}

// indexOf returns the position of message id, or -1.
func (m Model) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, msg := range m.snap.Messages {
		if msg.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// OVERLAYS
// =============================================================================

// settingsRows are the rows of the settings overlay.
var settingsRows = []string{"Theme", "Stream responses", "Function calling"}

func (m *Model) openOverlay(o overlay) {
	m.overlay = o
	m.cursor = 0
	switch o {
	case overlayModels:
		for i, info := range m.snap.Models {
			if info.ID == m.snap.Model {
				m.cursor = i
			}
		}
	}
}

func (m Model) overlayLen() int {
	switch m.overlay {
	case overlayModels:
		return len(m.snap.Models)
	case overlayTools:
		return len(m.snap.Tools)
	case overlaySettings:
		return len(settingsRows)
	}
	return 0
}

func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.okeys.Close), m.overlay == overlayHelp:
		m.overlay = overlayNone
		return m, nil

	case key.Matches(msg, m.okeys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.okeys.Down):
		if m.cursor < m.overlayLen()-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.okeys.Choose):
		m.choose()
		return m, nil
	}

	if m.overlay == overlaySettings {
		switch msg.String() {
		case "t":
			m.cursor = 0
			m.choose()
		case "s":
			m.cursor = 1
			m.choose()
		case "f":
			m.cursor = 2
			m.choose()
		}
	}
	return m, nil
}

// choose applies the row under the cursor.
func (m *Model) choose() {
	switch m.overlay {
	case overlayModels:
		if m.cursor >= len(m.snap.Models) {
			return
		}
		id := m.snap.Models[m.cursor].ID
		if err := m.ctrl.SelectModel(id); err != nil {
			m.status = err.Error()
			return
		}
		m.status = "model: " + id
		m.overlay = overlayNone

	case overlayTools:
		if m.cursor >= len(m.snap.Tools) {
			return
		}
		t := m.snap.Tools[m.cursor]
		if _, err := m.ctrl.ToggleTool(t.ID, !t.Enabled); err != nil {
			m.status = err.Error()
		}

	case overlaySettings:
		s := m.ctrl.Settings()
		switch m.cursor {
		case 0:
			s.Theme = nextTheme(s.Theme)
		case 1:
			s.StreamEnabled = !s.StreamEnabled
		case 2:
			s.FunctionCallingEnabled = !s.FunctionCallingEnabled
		}
		m.ctrl.ApplySettings(s)
	}
}

func nextTheme(t settings.Theme) settings.Theme {
	for i, name := range settings.Themes {
		if name == t {
			return settings.Themes[(i+1)%len(settings.Themes)]
		}
	}
	return settings.Themes[0]
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) resize() {
	m.input.SetWidth(max(m.width-4, 10))
	m.help.Width = m.width

	h := m.height - headerHeight - inputHeight - noticeHeight - statusHeight
	m.viewport.Width = m.width
	m.viewport.Height = max(h, 3)
}

// refresh re-renders the transcript. The view stays pinned to the bottom
// when it already was there or when follow is set.
func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) hasPending() bool {
	for _, msg := range m.snap.Messages {
		if !msg.State.Terminal() {
			return true
		}
	}
	return false
}

func defaultTheme(name string) *styles.Theme {
	t, _ := settings.ParseTheme(name)
	return styles.NewTheme(t)
}
