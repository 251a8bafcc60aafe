package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/strumcli/strum/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	app := &cli.Command{
		Name:    "strum",
		Usage:   "Browse and remote-control Spotify from the terminal",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			runner := NewRunner(loadConfig(cmd.String("config"), logger), logger)
			return runner.RunTUI(ctx, cmd)
		},
	}

	runner := NewRunner(loadConfig("", logger), logger)
	app.Commands = runner.register()

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrMissingClientID) {
			logger.Fatal("Spotify client ID not configured; run `strum setup` or set SPOTIFY_CLIENT_ID")
		}
		logger.Fatalf("application error: %v", err)
	}
}
