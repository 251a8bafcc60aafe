package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Engine   EngineConfig   `toml:"engine"`
}

// SpotifyConfig contains the Spotify application identity.
//
// Only a client ID is required (strum uses the PKCE flow, no secret).
type SpotifyConfig struct {
	ClientID    string `toml:"client_id"`
	RedirectURI string `toml:"redirect_uri"`
}

// DatabaseConfig contains credential store settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// EngineConfig contains tuning knobs for the sync engine.
// All values are defaults, not contracts; zero values fall back to the embedded example config.
type EngineConfig struct {
	PollIntervalMS      int `toml:"poll_interval_ms"`
	SlowPollIntervalMS  int `toml:"slow_poll_interval_ms"`
	StaleAfterMS        int `toml:"stale_after_ms"`
	HTTPTimeoutMS       int `toml:"http_timeout_ms"`
	BackoffBaseMS       int `toml:"backoff_base_ms"`
	MaxAttempts         int `toml:"max_attempts"`
	DebounceMS          int `toml:"debounce_ms"`
	ReconcileDeadlineMS int `toml:"reconcile_deadline_ms"`
}

func (e EngineConfig) PollInterval() time.Duration      { return msOr(e.PollIntervalMS, 1500) }
func (e EngineConfig) SlowPollInterval() time.Duration  { return msOr(e.SlowPollIntervalMS, 5000) }
func (e EngineConfig) StaleAfter() time.Duration        { return msOr(e.StaleAfterMS, 10000) }
func (e EngineConfig) HTTPTimeout() time.Duration       { return msOr(e.HTTPTimeoutMS, 8000) }
func (e EngineConfig) BackoffBase() time.Duration       { return msOr(e.BackoffBaseMS, 250) }
func (e EngineConfig) Debounce() time.Duration          { return msOr(e.DebounceMS, 300) }
func (e EngineConfig) ReconcileDeadline() time.Duration { return msOr(e.ReconcileDeadlineMS, 5000) }

func (e EngineConfig) Attempts() int {
	if e.MaxAttempts <= 0 {
		return 3
	}
	return e.MaxAttempts
}

func msOr(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// The SPOTIFY_CLIENT_ID environment variable, when set, overrides the file value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&config)
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config,
// with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	applyEnv(&config)
	return &config
}

// Validate checks that the configuration is usable.
//
// A missing client ID is a startup-time fatal error, not something the engine
// discovers later.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Spotify.ClientID) == "" {
		return fmt.Errorf("%w: set SPOTIFY_CLIENT_ID or spotify.client_id in config.toml", ErrMissingClientID)
	}
	return nil
}

// DatabasePath resolves the credential store path, defaulting to strum.db in the config dir.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "strum.db"), nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func applyEnv(c *Config) {
	if id := strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID")); id != "" {
		c.Spotify.ClientID = id
	}
}
