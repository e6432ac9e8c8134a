// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/session"
	"github.com/jeranaias/puterchat/internal/ui/styles"
)

// noticeTTL is how long a notice toast stays on screen.
const noticeTTL = 4 * time.Second

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat model. Zero values take defaults.
type Options struct {
	// Session enables sign in and the user badge. Nil hides both.
	Session *session.Manager

	// ExportDir receives exports and speech audio (default: ".").
	ExportDir string

	// ExportFormat is markdown, html or json (default: markdown).
	ExportFormat string

	// Language for speech; empty uses the controller default.
	Language string

	// ThemeFactory builds styles for a theme (default: styles.NewTheme).
	// Tests pass a fixed color profile.
	ThemeFactory func(name string) *styles.Theme

	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.ExportDir == "" {
		o.ExportDir = "."
	}
	if o.ExportFormat == "" {
		o.ExportFormat = "markdown"
	}
	if o.ThemeFactory == nil {
		o.ThemeFactory = defaultTheme
	}
}

// =============================================================================
// OVERLAYS
// =============================================================================

type overlay int

const (
	overlayNone overlay = iota
	overlayModels
	overlayTools
	overlaySettings
	overlayHelp
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen. It renders controller
// snapshots and turns key presses into controller operations; it keeps no
// conversation state of its own.
type Model struct {
	ctrl *controller.Controller
	sess *session.Manager
	opts Options
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// Snapshots arrive here from the controller, newest wins.
	updates     chan controller.Snapshot
	unsubscribe func()

	snap  controller.Snapshot
	theme *styles.Theme
	md    *markdown

	// UI Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	okeys    overlayKeys

	width  int
	height int
	ready  bool

	// Index into snap.Messages, -1 when nothing is selected.
	selected int

	overlay overlay
	cursor  int

	// The draft as last exchanged with the controller.
	syncedDraft string

	noticeSeq uint64
	notice    *controller.Notice

	status string
	user   *provider.User
	sends  int
}

// New creates the chat model for ctrl.
func New(ctrl *controller.Controller, opts Options) Model {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	ti := textarea.New()
	ti.Placeholder = "Type a message..."
	ti.ShowLineNumbers = false
	ti.CharLimit = 8192
	ti.SetHeight(3)
	ti.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = styles.LineSpinner.Bubble()

	m := Model{
		ctrl:     ctrl,
		sess:     opts.Session,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "tui").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan controller.Snapshot, 1),
		md:       newMarkdown(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		okeys:    defaultOverlayKeys(),
		selected: -1,
	}

	// Subscribe delivers the current snapshot synchronously.
	m.unsubscribe = ctrl.Subscribe(m.offer)
	m.snap = <-m.updates
	m.theme = opts.ThemeFactory(string(m.snap.Settings.Theme))
	m.syncedDraft = m.snap.Draft
	m.input.SetValue(m.snap.Draft)
	if n, ok := m.snap.LastNotice(); ok {
		m.noticeSeq = n.Seq
	}
	return m
}

// offer queues snap, replacing an undelivered older one. It runs on the
// controller's publishing goroutine and never blocks.
func (m Model) offer(snap controller.Snapshot) {
	for {
		select {
		case m.updates <- snap:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

// Close stops receiving snapshots and cancels in-flight commands.
func (m Model) Close() {
	m.unsubscribe()
	m.cancel()
}

// Init starts the snapshot pump, the cursor blink and session restore.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForSnapshot(), textarea.Blink, m.spinner.Tick}
	if m.sess != nil {
		cmds = append(cmds, m.sess.RestoreCmd(m.ctx))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// MESSAGES
// =============================================================================

// snapshotMsg carries a new controller snapshot.
type snapshotMsg struct{ snap controller.Snapshot }

// sendDoneMsg reports the end of one SendPrompt.
type sendDoneMsg struct{ err error }

// speechMsg reports a finished text-to-speech request.
type speechMsg struct {
	path string
	err  error
}

// exportMsg reports a finished export.
type exportMsg struct {
	path string
	err  error
}

// extractMsg reports a finished image-to-text request.
type extractMsg struct{ err error }

// noticeExpiredMsg hides the toast for seq.
type noticeExpiredMsg struct{ seq uint64 }

// refreshMsg reports a model catalog refresh.
type refreshMsg struct{ err error }

// signOutMsg reports a finished sign out.
type signOutMsg struct{ err error }

func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-m.updates:
			return snapshotMsg{snap}
		case <-m.ctx.Done():
			return nil
		}
	}
}

func expireNotice(seq uint64) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq}
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Snapshot returns the snapshot currently rendered.
func (m Model) Snapshot() controller.Snapshot { return m.snap }

// Selected returns the ID of the selected message.
func (m Model) Selected() (string, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Messages) {
		return "", false
	}
	return m.snap.Messages[m.selected].ID, true
}

// InputValue returns the text in the input box.
func (m Model) InputValue() string { return m.input.Value() }

// Status returns the transient status line.
func (m Model) Status() string { return m.status }
