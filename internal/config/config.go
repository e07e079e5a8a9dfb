// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"premiumchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete premiumchat configuration.
type Config struct {
	// API configuration
	API APIConfig `toml:"api"`

	// Chat configuration
	Chat ChatConfig `toml:"chat"`

	// UI configuration
	UI UIConfig `toml:"ui"`

	// Debug enables verbose logging
	Debug bool `toml:"debug"`
}

// APIConfig contains backend connection configuration.
type APIConfig struct {
	// BaseURL is the backend API base URL including the /api prefix
	BaseURL string `toml:"base_url"`
	// CSRFToken is sent as X-CSRFToken on every request when non-empty
	CSRFToken string `toml:"csrf_token"`
	// RequestsPerSecond paces outgoing requests
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ChatConfig contains conversation behavior configuration.
type ChatConfig struct {
	// MaxHistory is how many prior messages the server includes as context
	MaxHistory int `toml:"max_history"`
	// Selection is the persisted model/provider selection string
	// ("auto" or "model|p1,p2")
	Selection string `toml:"selection"`
}

// UIConfig contains presentation configuration.
type UIConfig struct {
	// Language is the UI locale (BCP-47 tag, e.g. "en", "ru")
	Language string `toml:"language"`
	// FontScale multiplies rendered text width budget (0.8-1.5)
	FontScale float64 `toml:"font_scale"`
	// Theme is the UI theme: "dark", "light" or "auto" (follow the
	// terminal background)
	Theme string `toml:"theme"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://127.0.0.1:8000/api",
			RequestsPerSecond: 5,
		},
		Chat: ChatConfig{
			MaxHistory: 50,
			Selection:  "auto",
		},
		UI: UIConfig{
			Language:  "en",
			FontScale: 1.0,
			Theme:     "auto",
		},
	}
}

// Dir returns the application data directory (~/.premiumchat).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".premiumchat"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from the default path, fills defaults for
// missing values, and applies environment overrides. A missing file is
// not an error; a malformed file is.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PREMIUMCHAT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("PREMIUMCHAT_CSRF_TOKEN"); v != "" {
		c.API.CSRFToken = v
	}
}

// fillDefaults replaces zero values left by a partial config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.RequestsPerSecond == 0 {
		c.API.RequestsPerSecond = def.API.RequestsPerSecond
	}
	if c.Chat.MaxHistory == 0 {
		c.Chat.MaxHistory = def.Chat.MaxHistory
	}
	if c.Chat.Selection == "" {
		c.Chat.Selection = def.Chat.Selection
	}
	if c.UI.Language == "" {
		c.UI.Language = def.UI.Language
	}
	if c.UI.FontScale == 0 {
		c.UI.FontScale = def.UI.FontScale
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q", c.API.BaseURL)
	}
	if c.Chat.MaxHistory < 1 {
		return fmt.Errorf("chat.max_history must be positive, got %d", c.Chat.MaxHistory)
	}
	// Clamp rather than reject: a wild font scale is a cosmetic problem.
	if c.UI.FontScale < 0.8 {
		c.UI.FontScale = 0.8
	}
	if c.UI.FontScale > 1.5 {
		c.UI.FontScale = 1.5
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path atomically.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to an explicit path atomically.
func (c *Config) SaveTo(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0644)
}
