// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/controller"
	"github.com/jeranaias/puterchat/internal/provider/fake"
	"github.com/jeranaias/puterchat/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type notice struct {
	level controller.NoticeLevel
	title string
	desc  string
}

type recorder struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recorder) Notify(level controller.NoticeLevel, title, desc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice{level, title, desc})
}

func (r *recorder) last() notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return notice{}
	}
	return r.notices[len(r.notices)-1]
}

func testKey(b byte) [KeySize]byte {
	var k [KeySize]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func newTestManager(p *fake.Provider, kv storage.KV, rec *recorder) *Manager {
	cfg := Config{Store: kv, Key: testKey(7), Logger: zerolog.Nop()}
	if rec != nil {
		cfg.Notifier = rec
	}
	return NewManager(p.Auth(), cfg)
}

// =============================================================================
// SIGN IN / OUT TESTS
// =============================================================================

func TestManager_SignIn(t *testing.T) {
	p := fake.New()
	kv := storage.NewMemoryKV()
	rec := &recorder{}
	m := newTestManager(p, kv, rec)
	ctx := context.Background()

	u, err := m.SignIn(ctx)
	if err != nil {
		t.Fatalf("SignIn error: %v", err)
	}
	if u.Username != "mock_user" {
		t.Errorf("Username = %q, want mock_user", u.Username)
	}

	got := rec.last()
	if got.title != "Login successful" || got.desc != "Welcome, mock_user!" {
		t.Errorf("notice = %+v", got)
	}

	sealed, err := kv.Get(ctx, KeyUser)
	if err != nil {
		t.Fatalf("identity not cached: %v", err)
	}
	if strings.Contains(sealed, "mock_user") {
		t.Error("cached identity should not be readable")
	}

	st := m.GetStatus()
	if !st.SignedIn || st.Username != "mock_user" {
		t.Errorf("status = %+v", st)
	}
}

func TestManager_SignInFailure(t *testing.T) {
	p := fake.New()
	p.FakeAuth().SignInErr = errors.New("popup closed")
	kv := storage.NewMemoryKV()
	rec := &recorder{}
	m := newTestManager(p, kv, rec)

	if _, err := m.SignIn(context.Background()); err == nil {
		t.Fatal("SignIn should fail")
	}

	got := rec.last()
	if got.level != controller.NoticeError || got.title != "Login failed" {
		t.Errorf("notice = %+v", got)
	}
	if _, err := kv.Get(context.Background(), KeyUser); !errors.Is(err, storage.ErrNotFound) {
		t.Error("nothing should be cached after a failed sign in")
	}
}

func TestManager_SignOut(t *testing.T) {
	p := fake.New()
	kv := storage.NewMemoryKV()
	rec := &recorder{}
	m := newTestManager(p, kv, rec)
	ctx := context.Background()

	if _, err := m.SignIn(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.SignOut(ctx); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}

	if m.IsSignedIn(ctx) {
		t.Error("should be signed out")
	}
	if _, ok := m.Cached(); ok {
		t.Error("memory cache should be cleared")
	}
	if _, err := kv.Get(ctx, KeyUser); !errors.Is(err, storage.ErrNotFound) {
		t.Error("stored identity should be cleared")
	}
	if rec.last().title != "Signed out" {
		t.Errorf("notice = %+v", rec.last())
	}
}

// =============================================================================
// RESTORE TESTS
// =============================================================================

func TestManager_Restore(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()

	first := newTestManager(fake.New(), kv, nil)
	if _, err := first.SignIn(ctx); err != nil {
		t.Fatal(err)
	}

	// A new process: the provider session is gone but the cache remains.
	p := fake.New()
	second := newTestManager(p, kv, nil)
	u, ok := second.Restore(ctx)
	if !ok {
		t.Fatal("Restore should find the cached user")
	}
	if u.UUID != "mock-user-id" {
		t.Errorf("UUID = %q", u.UUID)
	}
	if p.FakeAuth().GetCalls() != 0 {
		t.Error("Restore from cache should not call the provider")
	}
}

func TestManager_RestoreWrongKey(t *testing.T) {
	kv := storage.NewMemoryKV()
	ctx := context.Background()

	first := newTestManager(fake.New(), kv, nil)
	if _, err := first.SignIn(ctx); err != nil {
		t.Fatal(err)
	}

	other := NewManager(fake.New().Auth(), Config{Store: kv, Key: testKey(9), Logger: zerolog.Nop()})
	if _, ok := other.Restore(ctx); ok {
		t.Error("Restore should fail with a different key")
	}
	if _, err := kv.Get(ctx, KeyUser); !errors.Is(err, storage.ErrNotFound) {
		t.Error("unreadable cache should be discarded")
	}
}

func TestManager_RestoreLiveSession(t *testing.T) {
	p := fake.New()
	p.FakeAuth().SetSignedIn(true)
	m := newTestManager(p, storage.NewMemoryKV(), nil)

	u, ok := m.Restore(context.Background())
	if !ok || u.Username != "mock_user" {
		t.Errorf("Restore = %+v, %v", u, ok)
	}
}

func TestManager_RestoreNothing(t *testing.T) {
	m := newTestManager(fake.New(), nil, nil)
	if _, ok := m.Restore(context.Background()); ok {
		t.Error("Restore should report no user")
	}
}

// =============================================================================
// USER LOOKUP TESTS
// =============================================================================

func TestManager_UserSharesRequest(t *testing.T) {
	p := fake.New()
	gate := make(chan struct{})
	auth := p.FakeAuth()
	auth.SetSignedIn(true)
	auth.GetGate = gate
	m := newTestManager(p, nil, nil)

	const callers = 5
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := m.User(context.Background())
			if err == nil && u.Username != "mock_user" {
				err = errors.New("wrong user " + u.Username)
			}
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("User error: %v", err)
		}
	}
	if n := auth.GetCalls(); n != 1 {
		t.Errorf("GetUser calls = %d, want 1", n)
	}

	// Cached afterwards.
	if _, err := m.User(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := auth.GetCalls(); n != 1 {
		t.Errorf("GetUser calls after cache = %d, want 1", n)
	}
}

func TestManager_UserCancelledCallerDoesNotFailOthers(t *testing.T) {
	p := fake.New()
	gate := make(chan struct{})
	auth := p.FakeAuth()
	auth.SetSignedIn(true)
	auth.GetGate = gate
	m := newTestManager(p, nil, nil)

	impatient, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.User(impatient)
		firstErr <- err
	}()
	for auth.GetCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	secondErr := make(chan error, 1)
	go func() {
		_, err := m.User(context.Background())
		secondErr <- err
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(gate)
	if err := <-secondErr; err != nil {
		t.Errorf("patient caller error = %v", err)
	}
	if n := auth.GetCalls(); n != 1 {
		t.Errorf("GetUser calls = %d, want 1", n)
	}
	if _, ok := m.Cached(); !ok {
		t.Error("user should be cached after the shared lookup")
	}
}

func TestManager_SignOutDuringLookup(t *testing.T) {
	p := fake.New()
	gate := make(chan struct{})
	auth := p.FakeAuth()
	auth.SetSignedIn(true)
	auth.GetGate = gate
	kv := storage.NewMemoryKV()
	m := newTestManager(p, kv, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.User(ctx)
		done <- err
	}()
	for auth.GetCalls() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := m.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	// The provider still answers the lookup that started before sign-out.
	auth.SetSignedIn(true)
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("User: %v", err)
	}

	if _, ok := m.Cached(); ok {
		t.Error("sign-out undone by a stale lookup")
	}
	if _, err := kv.Get(ctx, KeyUser); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("sealed identity after sign-out: err = %v, want ErrNotFound", err)
	}
}

func TestManager_UserNotSignedIn(t *testing.T) {
	m := newTestManager(fake.New(), nil, nil)
	if _, err := m.User(context.Background()); err == nil {
		t.Error("User should fail without a session")
	}
}

// =============================================================================
// KEY FILE TESTS
// =============================================================================

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "session.key")

	k1, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	k2, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if k1 != k2 {
		t.Error("key should be stable across loads")
	}
	if k1 == ([KeySize]byte{}) {
		t.Error("key should not be zero")
	}

	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateKey(path); err == nil {
		t.Error("short key file should be rejected")
	}
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestManager_Status(t *testing.T) {
	m := newTestManager(fake.New(), nil, nil)
	st := m.GetStatus()

	if !strings.HasPrefix(st.SessionID, "sess_") {
		t.Errorf("SessionID should start with 'sess_', got %q", st.SessionID)
	}
	if st.StartTime.IsZero() {
		t.Error("StartTime should not be zero")
	}
	if st.SignedIn {
		t.Error("new session should not be signed in")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{30 * time.Second, "30s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m 30s"},
		{15 * time.Minute, "15m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
