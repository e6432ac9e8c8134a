// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/provider"
	"github.com/jeranaias/puterchat/internal/storage"
	"github.com/jeranaias/puterchat/internal/util"
)

// KeyUser stores the sealed cached identity.
const KeyUser = "puterUser"

// KeySize is the length of a sealing key.
const KeySize = 32

// Errors returned by the manager.
var (
	ErrNotSignedIn = errors.New("not signed in")
	ErrSealed      = errors.New("cached identity cannot be opened")
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Notifier receives user-visible auth notices. *controller.Controller
// implements it.
type Notifier interface {
	Notify(level controller.NoticeLevel, title, desc string)
}

// Manager wraps the provider authenticator and keeps a sealed copy of the
// signed-in user in the key-value store, so a restart can show who is
// signed in without a round-trip.
type Manager struct {
	auth   provider.Authenticator
	kv     storage.KV
	key    [KeySize]byte
	notify Notifier
	log    zerolog.Logger

	group singleflight.Group

	// cacheMu orders identity writes against sign-out.
	cacheMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	startTime time.Time
	user      *provider.User
	gen       uint64 // bumped by sign-out; stale lookups are not cached
}

// Config holds configuration for the session manager.
type Config struct {
	// Store holds the sealed identity. Nil disables caching.
	Store storage.KV

	// Key seals the cached identity. Use LoadOrCreateKey to keep one on disk.
	Key [KeySize]byte

	// Notifier receives sign-in and sign-out notices. Optional.
	Notifier Notifier

	Logger zerolog.Logger
}

// NewManager creates a session manager for auth.
func NewManager(auth provider.Authenticator, cfg Config) *Manager {
	return &Manager{
		auth:      auth,
		kv:        cfg.Store,
		key:       cfg.Key,
		notify:    cfg.Notifier,
		log:       cfg.Logger.With().Str("component", "session").Logger(),
		sessionID: generateSessionID(),
		startTime: time.Now(),
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

// Restore loads the cached identity. A cache that cannot be opened is
// discarded. When nothing is cached but the provider reports a live
// session, the user is fetched.
func (m *Manager) Restore(ctx context.Context) (provider.User, bool) {
	if u, err := m.loadCached(ctx); err == nil {
		m.setUser(&u)
		return u, true
	} else if !errors.Is(err, storage.ErrNotFound) {
		m.log.Warn().Err(err).Msg("discarding cached identity")
		m.clearCached(ctx)
	}

	if !m.auth.IsSignedIn(ctx) {
		return provider.User{}, false
	}
	u, err := m.User(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to fetch user for live session")
		return provider.User{}, false
	}
	return u, true
}

// User returns the signed-in user. Concurrent callers share one provider
// request; a caller whose ctx ends stops waiting without failing the others.
// A lookup that races SignOut is returned but not cached.
func (m *Manager) User(ctx context.Context) (provider.User, error) {
	if u, ok := m.Cached(); ok {
		return u, nil
	}

	ch := m.group.DoChan("user", func() (any, error) {
		gen := m.generation()
		flightCtx := context.WithoutCancel(ctx)
		u, err := m.auth.GetUser(flightCtx)
		if err != nil {
			return provider.User{}, err
		}
		if !m.remember(flightCtx, u, gen) {
			m.log.Debug().Msg("signed out during lookup, identity not cached")
		}
		return u, nil
	})

	select {
	case <-ctx.Done():
		return provider.User{}, fmt.Errorf("get user: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return provider.User{}, fmt.Errorf("get user: %w", res.Err)
		}
		return res.Val.(provider.User), nil
	}
}

// Cached returns the identity held in memory.
func (m *Manager) Cached() (provider.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return provider.User{}, false
	}
	return *m.user, true
}

// IsSignedIn reports whether a user is known or the provider has a session.
func (m *Manager) IsSignedIn(ctx context.Context) bool {
	if _, ok := m.Cached(); ok {
		return true
	}
	return m.auth.IsSignedIn(ctx)
}

// SignIn starts a provider session and caches the user.
func (m *Manager) SignIn(ctx context.Context) (provider.User, error) {
	u, err := m.auth.SignIn(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("sign in failed")
		m.emit(controller.NoticeError, "Login failed", err.Error())
		return provider.User{}, fmt.Errorf("sign in: %w", err)
	}
	m.remember(ctx, u, m.generation())
	m.log.Info().Str("user", u.Username).Msg("signed in")
	m.emit(controller.NoticeInfo, "Login successful", "Welcome, "+u.Username+"!")
	return u, nil
}

// SignOut ends the provider session and forgets the cached user. Lookups
// still in flight are not cached afterwards.
func (m *Manager) SignOut(ctx context.Context) error {
	m.forget(ctx)
	err := m.auth.SignOut(ctx)
	m.forget(ctx)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	m.emit(controller.NoticeInfo, "Signed out", "You have been signed out.")
	return nil
}

// remember caches u unless a sign-out happened since gen was read.
func (m *Manager) remember(ctx context.Context, u provider.User, gen uint64) bool {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	m.user = &u
	m.mu.Unlock()

	if m.kv == nil {
		return true
	}
	sealed, err := m.seal(u)
	if err == nil {
		err = m.kv.Set(ctx, KeyUser, sealed)
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("failed to cache identity")
	}
	return true
}

func (m *Manager) forget(ctx context.Context) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	m.mu.Lock()
	m.gen++
	m.user = nil
	m.mu.Unlock()
	m.clearCached(ctx)
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *Manager) setUser(u *provider.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

func (m *Manager) emit(level controller.NoticeLevel, title, desc string) {
	if m.notify != nil {
		m.notify.Notify(level, title, desc)
	}
}

// =============================================================================
// SEALED CACHE
// =============================================================================

func (m *Manager) loadCached(ctx context.Context) (provider.User, error) {
	if m.kv == nil {
		return provider.User{}, storage.ErrNotFound
	}
	raw, err := m.kv.Get(ctx, KeyUser)
	if err != nil {
		return provider.User{}, err
	}
	return m.open(raw)
}

func (m *Manager) clearCached(ctx context.Context) {
	if m.kv == nil {
		return
	}
	if err := m.kv.Delete(ctx, KeyUser); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.log.Warn().Err(err).Msg("failed to clear cached identity")
	}
}

// seal encrypts u as base64(nonce || box).
func (m *Manager) seal(u provider.User) (string, error) {
	plain, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &m.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (m *Manager) open(sealed string) (provider.User, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(box) < 24+secretbox.Overhead {
		return provider.User{}, ErrSealed
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, &m.key)
	if !ok {
		return provider.User{}, ErrSealed
	}
	var u provider.User
	if err := json.Unmarshal(plain, &u); err != nil {
		return provider.User{}, ErrSealed
	}
	return u, nil
}

// LoadOrCreateKey reads a sealing key from path, creating a random one with
// mode 0600 when the file does not exist.
func LoadOrCreateKey(path string) ([KeySize]byte, error) {
	var key [KeySize]byte

	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != KeySize {
			return key, fmt.Errorf("session key %s: want %d bytes, got %d", path, KeySize, len(data))
		}
		copy(key[:], data)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return key, err
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, err
	}
	if err := util.AtomicWriteFile(path, key[:], 0600); err != nil {
		return key, fmt.Errorf("write session key: %w", err)
	}
	return key, nil
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// UserMsg carries the result of a background identity lookup.
type UserMsg struct {
	User provider.User
	Err  error
}

// RestoreCmd restores the identity off the UI goroutine.
func (m *Manager) RestoreCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		u, ok := m.Restore(ctx)
		if !ok {
			return UserMsg{Err: ErrNotSignedIn}
		}
		return UserMsg{User: u}
	}
}

// SignInCmd signs in off the UI goroutine.
func (m *Manager) SignInCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		u, err := m.SignIn(ctx)
		return UserMsg{User: u, Err: err}
	}
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID string        `json:"session_id"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
	SignedIn  bool          `json:"signed_in"`
	Username  string        `json:"username,omitempty"`
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		SessionID: m.sessionID,
		StartTime: m.startTime,
		Duration:  time.Since(m.startTime),
	}
	if m.user != nil {
		st.SignedIn = true
		st.Username = m.user.Username
	}
	return st
}

// generateSessionID creates a unique session ID.
func generateSessionID() string {
	return "sess_" + uuid.NewString()[:8]
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		return util.IntToString(secs) + "s"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return util.IntToString(mins) + "m"
	}
	return util.IntToString(mins) + "m " + util.IntToString(secs) + "s"
}
