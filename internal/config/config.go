// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/puterchat/internal/model"
	"github.com/jeranaias/puterchat/internal/settings"
	"github.com/jeranaias/puterchat/internal/util"
)

// Provider kinds.
const (
	ProviderPuter = "puter"
	ProviderMock  = "mock"
)

// CurrentVersion is written into saved files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete puterchat configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Provider ProviderConfig `toml:"provider" json:"provider" yaml:"provider"`
	Chat     ChatConfig     `toml:"chat" json:"chat" yaml:"chat"`
	Storage  StorageConfig  `toml:"storage" json:"storage" yaml:"storage"`
	Server   ServerConfig   `toml:"server" json:"server" yaml:"server"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`
	Speech   SpeechConfig   `toml:"speech" json:"speech" yaml:"speech"`
}

// ProviderConfig selects and tunes the AI backend.
type ProviderConfig struct {
	// Kind is "puter" for the hosted API or "mock" for canned offline replies.
	Kind    string `toml:"kind" json:"kind" yaml:"kind"`
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	Token   string `toml:"token" json:"token" yaml:"token"`

	TimeoutSecs       int     `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `toml:"burst" json:"burst" yaml:"burst"`
}

// ChatConfig holds the initial chat preferences. Preferences saved by the
// application take precedence on later runs.
type ChatConfig struct {
	DefaultModel    string `toml:"default_model" json:"default_model" yaml:"default_model"`
	Stream          bool   `toml:"stream" json:"stream" yaml:"stream"`
	FunctionCalling bool   `toml:"function_calling" json:"function_calling" yaml:"function_calling"`
	Theme           string `toml:"theme" json:"theme" yaml:"theme"`
}

// StorageConfig locates persistent files. Empty paths resolve under the
// config directory.
type StorageConfig struct {
	// Path of the SQLite key-value database.
	Path           string `toml:"path" json:"path" yaml:"path"`
	TranscriptsDir string `toml:"transcripts_dir" json:"transcripts_dir" yaml:"transcripts_dir"`
	SessionKeyFile string `toml:"session_key_file" json:"session_key_file" yaml:"session_key_file"`
}

// ServerConfig configures the web bridge.
type ServerConfig struct {
	Addr string `toml:"addr" json:"addr" yaml:"addr"`

	// Token, when set, is required as a bearer token on every request.
	Token          string   `toml:"token" json:"token" yaml:"token"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins"`

	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" yaml:"rate_burst"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`

	// File, when set, receives logs instead of stderr.
	File string `toml:"file" json:"file" yaml:"file"`
}

// SpeechConfig configures text to speech.
type SpeechConfig struct {
	Language     string `toml:"language" json:"language" yaml:"language"`
	CacheMB      int    `toml:"cache_mb" json:"cache_mb" yaml:"cache_mb"`
	CacheTTLMins int    `toml:"cache_ttl_mins" json:"cache_ttl_mins" yaml:"cache_ttl_mins"`
}

// Settings converts the chat section to controller settings.
func (c ChatConfig) Settings() settings.Settings {
	theme, _ := settings.ParseTheme(c.Theme)
	return settings.Settings{
		Theme:                  theme,
		StreamEnabled:          c.Stream,
		FunctionCallingEnabled: c.FunctionCalling,
	}
}

// Timeout returns the provider request timeout.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// CacheBytes returns the speech cache budget.
func (s SpeechConfig) CacheBytes() int64 {
	return int64(s.CacheMB) << 20
}

// CacheTTL returns the speech cache expiry.
func (s SpeechConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMins) * time.Minute
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Provider: ProviderConfig{
			Kind:              ProviderPuter,
			BaseURL:           "https://api.puter.com",
			TimeoutSecs:       60,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Chat: ChatConfig{
			DefaultModel: model.DefaultModel,
			Theme:        string(settings.ThemeDark),
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 10,
			RateBurst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Speech: SpeechConfig{
			Language:     "en-US",
			CacheMB:      32,
			CacheTTLMins: 60,
		},
	}
}

// SetDefaults fills zero values from Default and resolves storage paths.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}

	if c.Provider.Kind == "" {
		c.Provider.Kind = d.Provider.Kind
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = d.Provider.BaseURL
	}
	if c.Provider.TimeoutSecs == 0 {
		c.Provider.TimeoutSecs = d.Provider.TimeoutSecs
	}
	if c.Provider.RequestsPerSecond == 0 {
		c.Provider.RequestsPerSecond = d.Provider.RequestsPerSecond
	}
	if c.Provider.Burst == 0 {
		c.Provider.Burst = d.Provider.Burst
	}

	if c.Chat.DefaultModel == "" {
		c.Chat.DefaultModel = d.Chat.DefaultModel
	}
	if c.Chat.Theme == "" {
		c.Chat.Theme = d.Chat.Theme
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	if c.Speech.Language == "" {
		c.Speech.Language = d.Speech.Language
	}
	if c.Speech.CacheMB == 0 {
		c.Speech.CacheMB = d.Speech.CacheMB
	}
	if c.Speech.CacheTTLMins == 0 {
		c.Speech.CacheTTLMins = d.Speech.CacheTTLMins
	}

	if dir, err := ConfigDir(); err == nil {
		if c.Storage.Path == "" {
			c.Storage.Path = filepath.Join(dir, "puterchat.db")
		}
		if c.Storage.TranscriptsDir == "" {
			c.Storage.TranscriptsDir = filepath.Join(dir, "transcripts")
		}
		if c.Storage.SessionKeyFile == "" {
			c.Storage.SessionKeyFile = filepath.Join(dir, "session.key")
		}
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the puterchat configuration directory. PUTERCHAT_HOME
// overrides the default of ~/.puterchat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("PUTERCHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".puterchat"), nil
}

// SearchPaths returns the config files Load tries, in order.
func SearchPaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
		filepath.Join(dir, "config.json"),
	}, nil
}

// DefaultPath returns the TOML config path that Save writes.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// FindPath returns the first existing config file, or "".
func FindPath() string {
	paths, err := SearchPaths()
	if err != nil {
		return ""
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ensureSecurePermissions tightens a config file to 0600. It may hold tokens.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first config file found by SearchPaths, or defaults when
// there is none. Environment overrides are applied last.
func Load() (*Config, error) {
	if path := FindPath(); path != "" {
		return LoadFromPath(path)
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads a config file, choosing the format by extension:
// .json, .yaml/.yml, anything else is TOML.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile parses path as written, without defaults or environment
// overrides, so it can be edited and saved back.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, formatOf(path))
}

// Format names a config file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// Parse decodes data without applying defaults or validation.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg to path in the format its extension names. The file is
// replaced atomically with mode 0600.
func SaveTo(cfg *Config, path string) error {
	data, err := Encode(cfg, formatOf(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg in the given format.
func Encode(cfg *Config, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		buf.WriteString("# puterchat configuration file\n")
		buf.WriteString("# Values here are defaults; settings changed in the app are stored separately.\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidationErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	switch c.Provider.Kind {
	case ProviderPuter, ProviderMock:
	default:
		add("provider.kind", fmt.Sprintf("must be %q or %q, got %q", ProviderPuter, ProviderMock, c.Provider.Kind))
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("provider.base_url", "must be an http(s) URL")
	}
	if c.Provider.TimeoutSecs < 1 || c.Provider.TimeoutSecs > 600 {
		add("provider.timeout_secs", "must be between 1 and 600")
	}
	if c.Provider.RequestsPerSecond < 0 {
		add("provider.requests_per_second", "must not be negative")
	}
	if c.Provider.Burst < 0 {
		add("provider.burst", "must not be negative")
	}

	if strings.TrimSpace(c.Chat.DefaultModel) == "" {
		add("chat.default_model", "must not be empty")
	}
	if _, ok := settings.ParseTheme(c.Chat.Theme); !ok {
		add("chat.theme", fmt.Sprintf("unknown theme %q", c.Chat.Theme))
	}

	if c.Server.Addr == "" {
		add("server.addr", "must not be empty")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", "must not be negative")
	}
	if c.Server.RateBurst < 0 {
		add("server.rate_burst", "must not be negative")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.allowed_origins", fmt.Sprintf("invalid origin %q", origin))
		}
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil || c.Logging.Level == "" {
		add("logging.level", fmt.Sprintf("unknown level %q", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		add("logging.format", "must be \"text\" or \"json\"")
	}

	if _, err := language.Parse(c.Speech.Language); err != nil {
		add("speech.language", fmt.Sprintf("invalid language tag %q", c.Speech.Language))
	}
	if c.Speech.CacheMB < 0 {
		add("speech.cache_mb", "must not be negative")
	}
	if c.Speech.CacheTTLMins < 0 {
		add("speech.cache_ttl_mins", "must not be negative")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PUTERCHAT_PROVIDER: provider.kind
//   - PUTERCHAT_BASE_URL: provider.base_url
//   - PUTERCHAT_TOKEN: provider.token
//   - PUTERCHAT_MODEL: chat.default_model
//   - PUTERCHAT_LOG_LEVEL: logging.level
//   - PUTERCHAT_LOG_FORMAT: logging.format
//   - PUTERCHAT_ADDR: server.addr
//   - PUTERCHAT_SERVER_TOKEN: server.token
func (c *Config) ApplyEnvOverrides() {
	overrides := []struct {
		env string
		dst *string
	}{
		{"PUTERCHAT_PROVIDER", &c.Provider.Kind},
		{"PUTERCHAT_BASE_URL", &c.Provider.BaseURL},
		{"PUTERCHAT_TOKEN", &c.Provider.Token},
		{"PUTERCHAT_MODEL", &c.Chat.DefaultModel},
		{"PUTERCHAT_LOG_LEVEL", &c.Logging.Level},
		{"PUTERCHAT_LOG_FORMAT", &c.Logging.Format},
		{"PUTERCHAT_ADDR", &c.Server.Addr},
		{"PUTERCHAT_SERVER_TOKEN", &c.Server.Token},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by its dotted file key, e.g. "chat.default_model".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its dotted file key. Strings are converted to the
// field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag names.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i], "."))
		}
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return v, nil
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tagName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return tag
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(s)
			if err != nil {
				b = strings.EqualFold(s, "yes")
			}
			field.SetBool(b)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(s, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// AllKeys returns every configuration key in dot notation.
func AllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		if section.Type.Kind() != reflect.Struct {
			keys = append(keys, tagName(section))
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, tagName(section)+"."+tagName(section.Type.Field(j)))
		}
	}
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}
	return &clone
}

// String renders the config as JSON with tokens redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Provider.Token != "" {
		safe.Provider.Token = "[REDACTED]"
	}
	if safe.Server.Token != "" {
		safe.Server.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
