// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
	}
}

// reload returns a Runner bound to an explicitly flagged config file, or the
// receiver when no flag was given.
func (r *Runner) reload(path string) *Runner {
	if path == "" {
		return r
	}
	return NewRunner(loadConfig(path, r.logger), r.logger)
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize strum with your Spotify account (PKCE flow)",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.reload(cmd.String("config")).Auth(ctx, cmd)
		},
	}
}

func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "devices",
		Usage: "List playback devices known to your account",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.reload(cmd.String("config")).Devices(ctx, cmd)
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the catalog for tracks",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 20,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.reload(cmd.String("config")).Search(ctx, cmd)
		},
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the current playback state",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.reload(cmd.String("config")).Status(ctx, cmd)
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter config file",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return r.Setup(ctx, cmd)
		},
	}
}
