package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Valid Config File", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "")
		path := filepath.Join(t.TempDir(), "config.toml")
		contents := `
[spotify]
client_id = "abc123"
redirect_uri = "http://127.0.0.1:8888/callback"

[engine]
poll_interval_ms = 2000
`
		if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Spotify.ClientID != "abc123" {
			t.Errorf("expected client id abc123, got %q", config.Spotify.ClientID)
		}
		if got := config.Engine.PollInterval(); got != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %v", got)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Malformed TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(path, []byte("[spotify\nclient_id ="), 0644)

		if _, err := LoadConfig(path); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("Environment Overrides File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(path, []byte("[spotify]\nclient_id = \"from-file\"\n"), 0644)
		t.Setenv("SPOTIFY_CLIENT_ID", "from-env")

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Spotify.ClientID != "from-env" {
			t.Errorf("expected the env value to win, got %q", config.Spotify.ClientID)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")

	config := DefaultConfig()
	if config.Spotify.RedirectURI == "" {
		t.Error("embedded defaults should carry a redirect URI")
	}
	if err := config.Validate(); !errors.Is(err, ErrMissingClientID) {
		t.Errorf("defaults carry no client id, expected ErrMissingClientID, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Run("Client ID Present", func(t *testing.T) {
		config := &Config{Spotify: SpotifyConfig{ClientID: "abc"}}
		if err := config.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("Client ID Missing", func(t *testing.T) {
		config := &Config{}
		if err := config.Validate(); !errors.Is(err, ErrMissingClientID) {
			t.Errorf("expected ErrMissingClientID, got %v", err)
		}
	})

	t.Run("Whitespace Only", func(t *testing.T) {
		config := &Config{Spotify: SpotifyConfig{ClientID: "   "}}
		if err := config.Validate(); !errors.Is(err, ErrMissingClientID) {
			t.Errorf("expected ErrMissingClientID, got %v", err)
		}
	})
}

func TestEngineConfigDefaults(t *testing.T) {
	var engine EngineConfig

	for name, check := range map[string]struct {
		got  time.Duration
		want time.Duration
	}{
		"Poll Interval":      {engine.PollInterval(), 1500 * time.Millisecond},
		"Slow Poll Interval": {engine.SlowPollInterval(), 5 * time.Second},
		"Stale After":        {engine.StaleAfter(), 10 * time.Second},
		"HTTP Timeout":       {engine.HTTPTimeout(), 8 * time.Second},
		"Backoff Base":       {engine.BackoffBase(), 250 * time.Millisecond},
		"Debounce":           {engine.Debounce(), 300 * time.Millisecond},
		"Reconcile Deadline": {engine.ReconcileDeadline(), 5 * time.Second},
	} {
		t.Run(name, func(t *testing.T) {
			if check.got != check.want {
				t.Errorf("expected %v, got %v", check.want, check.got)
			}
		})
	}

	if engine.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", engine.Attempts())
	}
}

func TestCreateConfigFile(t *testing.T) {
	t.Run("Creates From Embedded Example", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := LoadConfig(path); err != nil {
			t.Errorf("created config does not parse: %v", err)
		}
	})

	t.Run("Refuses To Overwrite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(path, []byte("# mine"), 0644)

		if err := CreateConfigFile(path); err == nil {
			t.Error("expected an error for an existing file")
		}
	})
}
