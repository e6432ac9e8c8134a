// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/puterchat/internal/settings"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PUTERCHAT_HOME", dir)
	for _, env := range []string{
		"PUTERCHAT_PROVIDER", "PUTERCHAT_BASE_URL", "PUTERCHAT_TOKEN", "PUTERCHAT_MODEL",
		"PUTERCHAT_LOG_LEVEL", "PUTERCHAT_LOG_FORMAT", "PUTERCHAT_ADDR", "PUTERCHAT_SERVER_TOKEN",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// DEFAULT TESTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Chat.DefaultModel != "gpt-4o-mini" {
		t.Errorf("DefaultModel = %q, want gpt-4o-mini", cfg.Chat.DefaultModel)
	}
	if cfg.Chat.Settings() != settings.Default() {
		t.Errorf("Settings() = %+v, want defaults", cfg.Chat.Settings())
	}
}

func TestSetDefaults_ResolvesStorage(t *testing.T) {
	dir := isolate(t)
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Storage.Path != filepath.Join(dir, "puterchat.db") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Storage.SessionKeyFile != filepath.Join(dir, "session.key") {
		t.Errorf("SessionKeyFile = %q", cfg.Storage.SessionKeyFile)
	}
	if cfg.Provider.Timeout() != time.Minute {
		t.Errorf("Timeout = %v", cfg.Provider.Timeout())
	}
	if cfg.Speech.CacheBytes() != 32<<20 {
		t.Errorf("CacheBytes = %d", cfg.Speech.CacheBytes())
	}
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_NoFile(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Provider.Kind != ProviderPuter {
		t.Errorf("Kind = %q", cfg.Provider.Kind)
	}
}

func TestLoadFromPath_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[provider]
kind = "mock"

[chat]
default_model = "claude-3-5-sonnet"
stream = true
theme = "sunset"
`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
provider:
  kind: mock
chat:
  default_model: claude-3-5-sonnet
  stream: true
  theme: sunset
`,
		},
		{
			name:    "json",
			file:    "config.json",
			content: `{"provider":{"kind":"mock"},"chat":{"default_model":"claude-3-5-sonnet","stream":true,"theme":"sunset"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			cfg, err := LoadFromPath(path)
			if err != nil {
				t.Fatalf("LoadFromPath error: %v", err)
			}
			if cfg.Provider.Kind != ProviderMock {
				t.Errorf("Kind = %q, want mock", cfg.Provider.Kind)
			}
			if cfg.Chat.DefaultModel != "claude-3-5-sonnet" {
				t.Errorf("DefaultModel = %q", cfg.Chat.DefaultModel)
			}
			want := settings.Settings{Theme: settings.ThemeSunset, StreamEnabled: true}
			if cfg.Chat.Settings() != want {
				t.Errorf("Settings() = %+v, want %+v", cfg.Chat.Settings(), want)
			}
			// Unset values come from defaults.
			if cfg.Provider.BaseURL != "https://api.puter.com" {
				t.Errorf("BaseURL = %q", cfg.Provider.BaseURL)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("permissions = %o, want 600", info.Mode().Perm())
			}
		})
	}
}

func TestLoad_SearchOrder(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.json"), `{"chat":{"default_model":"from-json"}}`)
	writeFile(t, filepath.Join(dir, "config.yaml"), "chat:\n  default_model: from-yaml\n")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.DefaultModel != "from-yaml" {
		t.Errorf("DefaultModel = %q, want from-yaml", cfg.Chat.DefaultModel)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[provider]\nkind = \"openai\"\n")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error %T is not ValidationErrors", err)
	}
	if verrs[0].Field != "provider.kind" {
		t.Errorf("Field = %q", verrs[0].Field)
	}
}

func TestLoadFromPath_Malformed(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[provider\n")
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected decode error")
	}
}

// =============================================================================
// ENV TESTS
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PUTERCHAT_PROVIDER", "mock")
	t.Setenv("PUTERCHAT_TOKEN", "secret-token")
	t.Setenv("PUTERCHAT_MODEL", "gpt-4o")
	t.Setenv("PUTERCHAT_ADDR", ":9999")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Kind != "mock" || cfg.Provider.Token != "secret-token" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Chat.DefaultModel != "gpt-4o" {
		t.Errorf("DefaultModel = %q", cfg.Chat.DefaultModel)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if strings.Contains(cfg.String(), "secret-token") {
		t.Error("String() should redact the token")
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"bad base url", func(c *Config) { c.Provider.BaseURL = "ftp://x" }, "provider.base_url"},
		{"negative timeout", func(c *Config) { c.Provider.TimeoutSecs = -1 }, "provider.timeout_secs"},
		{"empty model", func(c *Config) { c.Chat.DefaultModel = " " }, "chat.default_model"},
		{"bad theme", func(c *Config) { c.Chat.Theme = "neon" }, "chat.theme"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad origin", func(c *Config) { c.Server.AllowedOrigins = []string{"not an origin"} }, "server.allowed_origins"},
		{"bad language", func(c *Config) { c.Speech.Language = "!!" }, "speech.language"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "server.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(cfg)
			err := cfg.Validate()
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() = %v, want ValidationErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			dir := isolate(t)
			path := filepath.Join(dir, "nested", name)

			cfg := Default()
			cfg.Chat.Theme = "grey"
			cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
			if err := SaveTo(cfg, path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}

			info, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if info.Mode().Perm() != 0600 {
				t.Errorf("permissions = %o, want 600", info.Mode().Perm())
			}

			loaded, err := LoadFromPath(path)
			if err != nil {
				t.Fatalf("LoadFromPath error: %v", err)
			}
			if loaded.Chat.Theme != "grey" {
				t.Errorf("Theme = %q", loaded.Chat.Theme)
			}
			if len(loaded.Server.AllowedOrigins) != 1 {
				t.Errorf("AllowedOrigins = %v", loaded.Server.AllowedOrigins)
			}
		})
	}
}

func TestReadFile_NoOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[chat]\ntheme = \"sunset\"\n")
	t.Setenv("PUTERCHAT_MODEL", "gpt-4o")

	cfg, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if cfg.Chat.Theme != "sunset" {
		t.Errorf("Theme = %q", cfg.Chat.Theme)
	}
	if cfg.Chat.DefaultModel != "" {
		t.Errorf("DefaultModel = %q, want it left unset", cfg.Chat.DefaultModel)
	}
	if cfg.Storage.Path != "" {
		t.Errorf("Storage.Path = %q, want it left unset", cfg.Storage.Path)
	}
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"chat.default_model", "gpt-4o", "gpt-4o"},
		{"chat.stream", "true", true},
		{"provider.timeout_secs", "30", 30},
		{"provider.requests_per_second", "2.5", 2.5},
		{"server.allowed_origins", "http://a.test, http://b.test", []string{"http://a.test", "http://b.test"}},
	}

	for _, tt := range tests {
		if err := cfg.Set(tt.key, tt.value); err != nil {
			t.Errorf("Set(%q) error: %v", tt.key, err)
			continue
		}
		got, err := cfg.Get(tt.key)
		if err != nil {
			t.Errorf("Get(%q) error: %v", tt.key, err)
			continue
		}
		switch want := tt.want.(type) {
		case []string:
			g, _ := got.([]string)
			if strings.Join(g, "|") != strings.Join(want, "|") {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, want)
			}
		default:
			if got != want {
				t.Errorf("Get(%q) = %v, want %v", tt.key, got, want)
			}
		}
	}

	if _, err := cfg.Get("chat.nope"); err == nil {
		t.Error("unknown key should fail")
	}
	if err := cfg.Set("chat.default_model.x", "y"); err == nil {
		t.Error("key through a scalar should fail")
	}
}

func TestAllKeys(t *testing.T) {
	keys := AllKeys()
	want := map[string]bool{"version": false, "provider.kind": false, "chat.theme": false, "speech.cache_mb": false}
	for _, k := range keys {
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("AllKeys missing %q", k)
		}
	}

	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) error: %v", k, err)
		}
	}
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_Reloads(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[chat]\ntheme = \"dark\"\n")

	changes := make(chan *Config, 4)
	w := NewWatcher(path, func(c *Config) { changes <- c }, zerolog.Nop())
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "[chat]\ntheme = \"light\"\nstream = true\n")

	select {
	case cfg := <-changes:
		if cfg.Chat.Theme != "light" || !cfg.Chat.Stream {
			t.Errorf("reloaded chat = %+v", cfg.Chat)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	// An invalid edit is skipped.
	writeFile(t, path, "[chat]\ntheme = \"neon\"\n")
	select {
	case cfg := <-changes:
		t.Errorf("invalid config delivered: %+v", cfg.Chat)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run error: %v", err)
	}
}
