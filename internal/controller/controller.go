// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/tools"
)

// =============================================================================
// MODE
// =============================================================================

// Mode selects what a prompt produces.
type Mode string

const (
	ModeChat        Mode = "chat"
	ModeTextToImage Mode = "textToImage"
)

// ParseMode maps a name to a Mode; anything unrecognized is chat.
func ParseMode(s string) Mode {
	switch s {
	case string(ModeTextToImage), "image", "txt2img":
		return ModeTextToImage
	}
	return ModeChat
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Controller. Zero values take defaults.
type Options struct {
	// Store persists preferences. Nil disables persistence.
	Store storage.KV

	// Catalog lists selectable models (default: model.DefaultCatalog()).
	Catalog *model.Catalog

	// Settings and Model are used when nothing is persisted.
	Settings settings.Settings
	Model    string

	// Language is the default speech language (default: en-US).
	Language string

	// SpeechCacheBytes bounds cached speech audio (default: 32MB).
	SpeechCacheBytes int64

	// SpeechCacheTTL expires cached audio (default: 1h).
	SpeechCacheTTL time.Duration

	// MaxNotices kept in snapshots (default: 50).
	MaxNotices int

	Logger zerolog.Logger
}

func (o *Options) setDefaults() {
	if o.Catalog == nil {
		o.Catalog = model.DefaultCatalog()
	}
	if o.Settings == (settings.Settings{}) {
		o.Settings = settings.Default()
	}
	o.Settings = o.Settings.Normalize()
	if o.Model == "" {
		o.Model = model.DefaultModel
	}
	if o.Language == "" {
		o.Language = "en-US"
	}
	if o.SpeechCacheBytes == 0 {
		o.SpeechCacheBytes = 32 << 20
	}
	if o.SpeechCacheTTL == 0 {
		o.SpeechCacheTTL = time.Hour
	}
	if o.MaxNotices == 0 {
		o.MaxNotices = 50
	}
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of controller state. Version increases with
// every change; subscribers never see a lower version after a higher one.
type Snapshot struct {
	Version  uint64            `json:"version"`
	Messages []model.Message   `json:"messages"`
	Settings settings.Settings `json:"settings"`
	Tools    []tools.Tool      `json:"tools"`
	Model    string            `json:"model"`
	Models   []model.ModelInfo `json:"models"`
	Mode     Mode              `json:"mode"`
	Draft    string            `json:"draft"`
	Busy     bool              `json:"busy"`
	Notices  []Notice          `json:"notices"`
}

// Message returns the message with the given ID.
func (s Snapshot) Message(id string) (model.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// LastNotice returns the most recent notice.
func (s Snapshot) LastNotice() (Notice, bool) {
	if len(s.Notices) == 0 {
		return Notice{}, false
	}
	return s.Notices[len(s.Notices)-1], true
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation, settings and tools. Every mutation goes
// through its methods; renderers read snapshots and subscribe to changes.
//
// Methods are safe for concurrent use. Sends may overlap: each one appends
// its own user and assistant messages together and afterwards only touches
// the assistant message it created.
type Controller struct {
	provider provider.Provider
	prefs    *settings.Store
	log      zerolog.Logger
	opts     Options

	mu        sync.Mutex
	conv      *model.Conversation
	settings  settings.Settings
	tools     tools.Set
	model     string
	catalog   *model.Catalog
	mode      Mode
	draft     string
	notices   []Notice
	noticeSeq uint64
	inflight  int
	version   uint64

	// pubMu orders delivery; delivered is the last version handed out.
	pubMu     sync.Mutex
	subs      map[int]func(Snapshot)
	nextSub   int
	delivered uint64

	speech *ristretto.Cache[string, provider.Audio]

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a controller backed by p. Persisted preferences in
// opts.Store override opts.Settings and opts.Model. If a capability is on
// for a model lacking it, the model is corrected as ApplySettings would.
func New(p provider.Provider, opts Options) (*Controller, error) {
	opts.setDefaults()

	speech, err := ristretto.NewCache(&ristretto.Config[string, provider.Audio]{
		NumCounters: 10_000,
		MaxCost:     opts.SpeechCacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		provider: p,
		prefs:    settings.NewStore(opts.Store, opts.Logger),
		log:      opts.Logger.With().Str("component", "controller").Logger(),
		opts:     opts,
		conv:     model.NewConversation(),
		catalog:  opts.Catalog,
		mode:     ModeChat,
		subs:     make(map[int]func(Snapshot)),
		speech:   speech,
		ctx:      ctx,
		cancel:   cancel,
	}

	loadCtx, done := context.WithTimeout(ctx, 5*time.Second)
	defer done()
	c.settings = c.prefs.LoadSettings(loadCtx, opts.Settings)
	c.tools = c.prefs.LoadTools(loadCtx, tools.DefaultSet())
	c.model = c.prefs.LoadModel(loadCtx, opts.Model)

	c.mu.Lock()
	c.correctModelLocked(settings.Settings{Theme: c.settings.Theme}, false)
	c.mu.Unlock()

	return c, nil
}

// Close stops in-flight sends from being observed and releases the speech
// cache. The controller must not be used afterwards.
func (c *Controller) Close() {
	c.cancel()
	c.speech.Close()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive every new snapshot, starting with the
// current one. fn runs on the goroutine that made the change and must not
// call back into the controller synchronously. The returned func
// unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.pubMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snap := c.Snapshot()
	if snap.Version > c.delivered {
		c.delivered = snap.Version
	}
	fn(snap)
	c.pubMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.pubMu.Lock()
			delete(c.subs, id)
			c.pubMu.Unlock()
		})
	}
}

// =============================================================================
// STATE HELPERS
// =============================================================================

// update runs fn under the state lock and publishes the result when fn
// reports a change.
func (c *Controller) update(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	if changed {
		c.version++
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if changed {
		c.publish(snap)
	}
	return changed
}

func (c *Controller) publish(snap Snapshot) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if snap.Version <= c.delivered {
		return
	}
	c.delivered = snap.Version
	for _, fn := range c.subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	notices := make([]Notice, len(c.notices))
	copy(notices, c.notices)
	return Snapshot{
		Version:  c.version,
		Messages: c.conv.Snapshot(),
		Settings: c.settings,
		Tools:    c.tools.List(),
		Model:    c.model,
		Models:   c.catalog.List(),
		Mode:     c.mode,
		Draft:    c.draft,
		Busy:     c.inflight > 0,
		Notices:  notices,
	}
}

// noticeLocked appends a notice, trimming the oldest past MaxNotices.
func (c *Controller) noticeLocked(level NoticeLevel, title, desc string) {
	c.noticeSeq++
	c.notices = append(c.notices, Notice{
		Seq:         c.noticeSeq,
		Level:       level,
		Title:       title,
		Description: desc,
		Time:        time.Now(),
	})
	if over := len(c.notices) - c.opts.MaxNotices; over > 0 {
		c.notices = append([]Notice(nil), c.notices[over:]...)
	}
}

// Notify emits a notice on behalf of another component.
func (c *Controller) Notify(level NoticeLevel, title, desc string) {
	c.update(func() bool {
		c.noticeLocked(level, title, desc)
		return true
	})
}

// persist saves preferences without holding the state lock. Failures are
// logged; the in-memory state stays authoritative.
func (c *Controller) persist(save func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := save(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist preferences")
	}
}
