package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/auth"
	"github.com/strumcli/strum/internal/player"
	"github.com/strumcli/strum/internal/shared"
	"github.com/strumcli/strum/internal/spotify"
	"github.com/strumcli/strum/internal/store"
	"github.com/strumcli/strum/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner wires configuration, credential storage, the API gateway, and the
// playback engine behind the CLI commands.
type Runner struct {
	config *shared.Config
	logger *log.Logger
}

// NewRunner creates a Runner with the provided config and logger.
func NewRunner(config *shared.Config, logger *log.Logger) *Runner {
	return &Runner{config: config, logger: logger}
}

func (r *Runner) register() []*cli.Command {
	return []*cli.Command{
		authCommand(r),
		devicesCommand(r),
		searchCommand(r),
		statusCommand(r),
		setupCommand(r),
	}
}

// stack assembles the credential store, token store, and API gateway.
// The returned closer releases the store's database handle.
func (r *Runner) stack(ctx context.Context) (*spotify.Client, *auth.Store, func(), error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, nil, err
	}

	dbPath, err := r.config.DatabasePath()
	if err != nil {
		return nil, nil, nil, err
	}

	creds, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	oauthConfig := auth.NewConfig(r.config.Spotify.ClientID, r.config.Spotify.RedirectURI)
	tokens := auth.NewStore(oauthConfig, creds, shared.WithLogger(r.logger, "component", "auth"))

	client := spotify.NewClient(tokens, spotify.Options{
		Logger:      shared.WithLogger(r.logger, "component", "gateway"),
		Timeout:     r.config.Engine.HTTPTimeout(),
		BackoffBase: r.config.Engine.BackoffBase(),
		MaxAttempts: r.config.Engine.Attempts(),
	})

	return client, tokens, func() { creds.Close() }, nil
}

// RunTUI is the default action: it assembles the engine and hands the
// terminal to the bubbletea program until the user quits.
func (r *Runner) RunTUI(ctx context.Context, cmd *cli.Command) error {
	client, _, closeStore, err := r.stack(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := player.NewEngine(client, r.logger, player.EngineConfig{
		Tracker: player.TrackerConfig{
			Interval:     r.config.Engine.PollInterval(),
			SlowInterval: r.config.Engine.SlowPollInterval(),
			StaleAfter:   r.config.Engine.StaleAfter(),
		},
		Dispatcher: player.DispatcherConfig{
			ReconcileDeadline: r.config.Engine.ReconcileDeadline(),
			Debounce:          r.config.Engine.Debounce(),
		},
	})

	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := engine.Run(engineCtx); err != nil && engineCtx.Err() == nil {
			r.logger.Error("engine stopped", "error", err)
		}
	}()

	model := ui.New(engineCtx, engine, client, shared.WithLogger(r.logger, "component", "ui"))
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// Auth runs the interactive PKCE authorization flow and persists the token.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	_, tokens, closeStore, err := r.stack(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	oauthConfig := auth.NewConfig(r.config.Spotify.ClientID, r.config.Spotify.RedirectURI)
	flow := auth.NewFlow(oauthConfig, r.logger)

	tok, err := flow.Run(ctx)
	if err != nil {
		return err
	}

	if err := tokens.SetToken(ctx, tok); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	r.logger.Info("authorized", "expiry", tok.Expiry)
	fmt.Println("Authorization successful.")
	return nil
}

// Devices lists the playback devices known to the account.
func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	client, _, closeStore, err := r.stack(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	devices, err := client.Devices(ctx)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No devices found. Open Spotify on a device first.")
		return nil
	}

	for _, d := range devices {
		marker := " "
		if d.IsActive {
			marker = "*"
		}
		fmt.Printf("%s %-30s %-12s vol %3d%%  %s\n", marker, d.Name, d.Type, d.VolumePercent, d.ID)
	}
	return nil
}

// Search queries the catalog and prints matching tracks.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.Args().First()
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	client, _, closeStore, err := r.stack(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tracks, err := client.SearchTracks(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	for _, t := range tracks {
		fmt.Printf("%-40s %-30s %s\n", t.Name, t.ArtistNames(), t.Album.Name)
	}
	return nil
}

// Status fetches and prints the current playback state once.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	client, _, closeStore, err := r.stack(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	pc, err := client.CurrentPlayback(ctx)
	if err != nil {
		return err
	}
	if pc == nil {
		fmt.Println("Nothing playing.")
		return nil
	}

	state := "paused"
	if pc.IsPlaying {
		state = "playing"
	}
	if pc.Item != nil {
		fmt.Printf("%s: %s — %s [%s]\n", state, pc.Item.Name, pc.Item.ArtistNames(), pc.Device.Name)
	} else {
		fmt.Printf("%s on %s\n", state, pc.Device.Name)
	}
	return nil
}

// Setup writes a starter config file into the user config directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	dir, err := shared.ConfigDir()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, "config.toml")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	fmt.Printf("Wrote %s — fill in your Spotify client ID.\n", path)
	return nil
}

// loadConfig resolves the config file: an explicit --config flag first, then
// the user config dir, then embedded defaults.
func loadConfig(path string, logger *log.Logger) *shared.Config {
	if path != "" {
		config, err := shared.LoadConfig(path)
		if err != nil {
			logger.Fatal("failed to load config", "path", path, "error", err)
		}
		return config
	}

	if dir, err := shared.ConfigDir(); err == nil {
		candidate := filepath.Join(dir, "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			if config, err := shared.LoadConfig(candidate); err == nil {
				return config
			}
		}
	}

	return shared.DefaultConfig()
}
