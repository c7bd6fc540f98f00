// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatwidget/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete chatwidget configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Endpoint EndpointConfig `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Session  SessionConfig  `toml:"session" json:"session" yaml:"session"`
	UI       UIConfig       `toml:"ui" json:"ui" yaml:"ui"`
	History  HistoryConfig  `toml:"history" json:"history" yaml:"history"`
	Log      LogConfig      `toml:"log" json:"log" yaml:"log"`
	Server   ServerConfig   `toml:"server" json:"server" yaml:"server"`
}

// EndpointConfig describes the remote chat endpoint.
type EndpointConfig struct {
	// URL receives POST requests with {query, session_id}.
	URL string `toml:"url" json:"url" yaml:"url"`
	// TimeoutSecs bounds each exchange. 0 waits indefinitely.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// SessionConfig controls session id bookkeeping.
type SessionConfig struct {
	// MissingID is "reset" (store "" when a reply omits session_id) or "keep".
	MissingID string `toml:"missing_id" json:"missing_id" yaml:"missing_id"`
}

// UIConfig contains widget presentation settings.
type UIConfig struct {
	Title       string `toml:"title" json:"title" yaml:"title"`
	Placeholder string `toml:"placeholder" json:"placeholder" yaml:"placeholder"`
	// NarrowWidth is the terminal width below which the widget collapses to
	// a floating bubble.
	NarrowWidth int `toml:"narrow_width" json:"narrow_width" yaml:"narrow_width"`
	// Markdown renders bot replies with glamour.
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
	// Theme is "auto", "dark" or "light".
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// StartMinimized opens the panel with its body collapsed.
	StartMinimized bool `toml:"start_minimized" json:"start_minimized" yaml:"start_minimized"`
}

// HistoryConfig controls the transcript archive.
type HistoryConfig struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	// Path is the SQLite database file (empty = ~/.chatwidget/history.db).
	Path string `toml:"path" json:"path" yaml:"path"`
}

// LogConfig controls the diagnostic log.
type LogConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error, disabled.
	Level string `toml:"level" json:"level" yaml:"level"`
	// File receives logs in TUI mode (empty = ~/.chatwidget/chatwidget.log).
	File string `toml:"file" json:"file" yaml:"file"`
}

// ServerConfig configures `chatwidget serve`.
type ServerConfig struct {
	Addr          string  `toml:"addr" json:"addr" yaml:"addr"`
	Greeting      string  `toml:"greeting" json:"greeting" yaml:"greeting"`
	RatePerSecond float64 `toml:"rate_per_second" json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `toml:"burst" json:"burst" yaml:"burst"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultEndpoint is the production chat endpoint.
const DefaultEndpoint = "https://chat.msnone-neopolis.com/chat"

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Endpoint: EndpointConfig{
			URL:         DefaultEndpoint,
			TimeoutSecs: 0,
		},
		Session: SessionConfig{
			MissingID: "reset",
		},
		UI: UIConfig{
			Title:       "🏢 MSN One Neopolis Assistant",
			Placeholder: "Type your message...",
			NarrowWidth: 60,
			Markdown:    true,
			Theme:       "auto",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8787",
			Greeting:      "Welcome! How can I help you today?",
			RatePerSecond: 5,
			Burst:         10,
		},
	}
}

// Timeout returns the exchange timeout as a duration (0 = none).
func (e EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the chatwidget configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".chatwidget"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// HistoryPath resolves the transcript database path.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LogPath resolves the log file used in TUI mode.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chatwidget.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// .env files are read first (without overriding the real environment), then
// TOML, then JSON, falling back to defaults. Environment overrides are
// applied last.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := Default()
	var loadErr error

	tomlPath, tomlErr := ConfigPathTOML()
	jsonPath, jsonErr := ConfigPathJSON()

	switch {
	case tomlErr == nil && fileExists(tomlPath):
		if err := LoadTOML(cfg, tomlPath); err != nil {
			loadErr = errors.Wrap(err, "failed to load TOML config")
			cfg = Default()
		}
	case jsonErr == nil && fileExists(jsonPath):
		if err := LoadJSON(cfg, jsonPath); err != nil {
			loadErr = errors.Wrap(err, "failed to load JSON config")
			cfg = Default()
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	// Defaults are returned alongside any load error for informational purposes.
	return cfg, loadErr
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrap(err, "failed to decode TOML file")
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read JSON file")
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return errors.Wrap(err, "failed to decode JSON file")
	}
	fillDefaults(cfg)
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	loadDotEnv()

	cfg := Default()
	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load JSON config from %s", path)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, errors.Wrapf(err, "failed to load TOML config from %s", path)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFile reads only the file at path over the defaults, without .env or
// environment overrides. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if !fileExists(path) {
		return cfg, nil
	}
	if strings.HasSuffix(path, ".json") {
		return cfg, LoadJSON(cfg, path)
	}
	return cfg, LoadTOML(cfg, path)
}

// loadDotEnv reads ./.env and ~/.chatwidget/.env if present. Variables that
// are already set in the environment win.
func loadDotEnv() {
	paths := []string{".env"}
	if dir, err := ConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, p := range paths {
		if !fileExists(p) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("could not read .env file")
		}
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Endpoint.URL == "" {
		cfg.Endpoint.URL = defaults.Endpoint.URL
	}
	if cfg.Session.MissingID == "" {
		cfg.Session.MissingID = defaults.Session.MissingID
	}
	if cfg.UI.Title == "" {
		cfg.UI.Title = defaults.UI.Title
	}
	if cfg.UI.Placeholder == "" {
		cfg.UI.Placeholder = defaults.UI.Placeholder
	}
	if cfg.UI.NarrowWidth == 0 {
		cfg.UI.NarrowWidth = defaults.UI.NarrowWidth
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.Greeting == "" {
		cfg.Server.Greeting = defaults.Server.Greeting
	}
	if cfg.Server.RatePerSecond == 0 {
		cfg.Server.RatePerSecond = defaults.Server.RatePerSecond
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = defaults.Server.Burst
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path, choosing JSON or TOML by extension. An empty path
// means the default TOML file.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	if strings.HasSuffix(path, ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

const tomlHeader = `# chatwidget configuration file
# Generated by chatwidget - edit with care
#
# Environment variables (CHATWIDGET_*) override values set here.

`

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	var buf bytes.Buffer
	buf.WriteString(tomlHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
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

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validMissingID = map[string]bool{"reset": true, "keep": true}
	validThemes    = map[string]bool{"auto": true, "dark": true, "light": true}
	validLogLevels = map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true,
		"error": true, "fatal": true, "panic": true, "disabled": true,
	}
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Endpoint.URL == "" {
		errs = append(errs, ValidationError{"endpoint.url", "must not be empty"})
	} else if u, err := url.Parse(c.Endpoint.URL); err != nil || u.Host == "" {
		errs = append(errs, ValidationError{"endpoint.url", "must be an absolute URL"})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"endpoint.url", fmt.Sprintf("unsupported scheme %q", u.Scheme)})
	}
	if c.Endpoint.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{"endpoint.timeout_secs", "must be >= 0 (0 = no timeout)"})
	}

	if !validMissingID[c.Session.MissingID] {
		errs = append(errs, ValidationError{"session.missing_id", fmt.Sprintf("must be \"reset\" or \"keep\", got %q", c.Session.MissingID)})
	}

	if c.UI.NarrowWidth < 0 {
		errs = append(errs, ValidationError{"ui.narrow_width", "must be >= 0"})
	}
	if !validThemes[c.UI.Theme] {
		errs = append(errs, ValidationError{"ui.theme", fmt.Sprintf("must be auto, dark or light, got %q", c.UI.Theme)})
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{"log.level", fmt.Sprintf("unknown level %q", c.Log.Level)})
	}

	if c.Server.RatePerSecond < 0 {
		errs = append(errs, ValidationError{"server.rate_per_second", "must be >= 0"})
	}
	if c.Server.Burst < 0 {
		errs = append(errs, ValidationError{"server.burst", "must be >= 0"})
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
//   - CHATWIDGET_ENDPOINT: overrides endpoint.url
//   - CHATWIDGET_TIMEOUT: overrides endpoint.timeout_secs
//   - CHATWIDGET_LOG_LEVEL: overrides log.level
//   - CHATWIDGET_HISTORY: "0"/"false" disables the archive, any other value
//     enables it; a value containing a path separator also sets history.path
//   - CHATWIDGET_MISSING_SESSION_ID: overrides session.missing_id
func (c *Config) ApplyEnvOverrides() {
	if endpoint := os.Getenv("CHATWIDGET_ENDPOINT"); endpoint != "" {
		c.Endpoint.URL = endpoint
	}

	if timeout := os.Getenv("CHATWIDGET_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil {
			c.Endpoint.TimeoutSecs = secs
		} else if d, err := time.ParseDuration(timeout); err == nil {
			c.Endpoint.TimeoutSecs = int(d.Seconds())
		} else {
			log.Warn().Str("value", timeout).Msg("ignoring invalid CHATWIDGET_TIMEOUT")
		}
	}

	if level := os.Getenv("CHATWIDGET_LOG_LEVEL"); level != "" {
		c.Log.Level = strings.ToLower(level)
	}

	if history := os.Getenv("CHATWIDGET_HISTORY"); history != "" {
		switch strings.ToLower(history) {
		case "0", "false", "off", "no":
			c.History.Enabled = false
		case "1", "true", "on", "yes":
			c.History.Enabled = true
		default:
			c.History.Enabled = true
			if strings.ContainsRune(history, filepath.Separator) || strings.HasSuffix(history, ".db") {
				c.History.Path = history
			}
		}
	}

	if policy := os.Getenv("CHATWIDGET_MISSING_SESSION_ID"); policy != "" {
		c.Session.MissingID = strings.ToLower(policy)
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.narrow_width").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "endpoint.url").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(part[:1]))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid integer value")
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return errors.Wrap(err, "invalid float value")
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				boolVal = strings.EqualFold(strVal, "yes")
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, sorted.
func GetAllKeys() []string {
	var keys []string
	collectKeys(reflect.TypeOf(Config{}), "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("toml"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			collectKeys(f.Type, name, keys)
			continue
		}
		*keys = append(*keys, name)
	}
}

// String returns a string representation of the config for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
