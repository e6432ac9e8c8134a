// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/speech"
)

// Frame types.
const (
	FrameSnapshot = "snapshot"
	FrameDraft    = "draft"
	FrameSend     = "send"
	FrameError    = "error"
)

// SourceSpeech marks a draft frame carrying recognizer output. Draft frames
// without it are typed text and replace the draft verbatim.
const SourceSpeech = "speech"

const writeTimeout = 10 * time.Second

// Frame is the envelope for every websocket message. The server sends
// snapshot and error frames; clients send draft and send frames.
type Frame struct {
	Type     string               `json:"type"`
	Text     string               `json:"text,omitempty"`
	Final    bool                 `json:"final,omitempty"`
	Source   string               `json:"source,omitempty"`
	Mode     string               `json:"mode,omitempty"`
	Snapshot *controller.Snapshot `json:"snapshot,omitempty"`
}

// conn is one websocket client. out holds at most the newest snapshot so a
// slow client skips intermediate states instead of stalling the controller.
type conn struct {
	ws     *websocket.Conn
	out    chan controller.Snapshot
	cancel context.CancelFunc
}

func (c *conn) offer(snap controller.Snapshot) {
	select {
	case c.out <- snap:
		return
	default:
	}
	select {
	case <-c.out:
	default:
	}
	select {
	case c.out <- snap:
	default:
	}
}

// Hub pushes controller snapshots to websocket clients and routes their
// frames back to the controller.
type Hub struct {
	ctx     context.Context
	ctrl    *controller.Controller
	drafts  *speech.PushRecognizer
	origins []string
	log     zerolog.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewHub creates a hub. Sends requested over the socket run on ctx.
// drafts may be nil. origins are the CORS allowed origins.
func NewHub(ctx context.Context, ctrl *controller.Controller, drafts *speech.PushRecognizer, origins []string, log zerolog.Logger) *Hub {
	return &Hub{
		ctx:     ctx,
		ctrl:    ctrl,
		drafts:  drafts,
		origins: origins,
		log:     log,
		conns:   make(map[*conn]struct{}),
	}
}

// acceptOptions converts allowed origins to websocket host patterns.
func (h *Hub) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range h.origins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			continue
		}
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}
	return opts
}

// HandleWS upgrades the request and serves the client until it leaves.
// The current snapshot is sent immediately after the upgrade.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	c := &conn{ws: ws, out: make(chan controller.Snapshot, 1), cancel: cancel}
	if !h.add(c) {
		cancel()
		ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	h.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket connected")

	unsubscribe := h.ctrl.Subscribe(c.offer)
	defer unsubscribe()

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	cancel()
	ws.Close(websocket.StatusNormalClosure, "")
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket disconnected")
}

func (h *Hub) writeLoop(ctx context.Context, c *conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-c.out:
			if err := h.write(ctx, c, Frame{Type: FrameSnapshot, Snapshot: &snap}); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, c *conn, f Frame) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.ws, f)
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		var f Frame
		if err := wsjson.Read(ctx, c.ws, &f); err != nil {
			return
		}
		switch f.Type {
		case FrameDraft:
			h.draft(f)
		case FrameSend:
			go h.send(ctx, c, f)
		default:
			h.log.Debug().Str("type", f.Type).Msg("ignoring websocket frame")
		}
	}
}

// draft routes text into the draft prompt. Recognized speech goes through
// the speech listener when one is attached; typed text, including an empty
// draft, is set directly.
func (h *Hub) draft(f Frame) {
	if f.Source == SourceSpeech && h.drafts != nil {
		if !h.drafts.Push(speech.Transcript{Text: f.Text, Final: f.Final}) {
			h.log.Debug().Msg("draft dropped, recognizer busy")
		}
		return
	}
	h.ctrl.SetDraft(f.Text)
}

// send runs a prompt on the hub context so it survives the client leaving.
// Failures other than validation are already visible as notices.
func (h *Hub) send(ctx context.Context, c *conn, f Frame) {
	text := f.Text
	if text == "" {
		text = h.ctrl.Draft()
	}
	mode := h.ctrl.Mode()
	if f.Mode != "" {
		mode = controller.ParseMode(f.Mode)
	}
	if err := h.ctrl.SendPrompt(h.ctx, text, mode); err != nil {
		if statusFor(err) == http.StatusBadRequest {
			_ = h.write(ctx, c, Frame{Type: FrameError, Text: err.Error()})
		}
	}
}

func (h *Hub) add(c *conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns == nil {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = nil
	h.mu.Unlock()

	for c := range conns {
		c.ws.Close(websocket.StatusGoingAway, "server shutting down")
		c.cancel()
	}
}
