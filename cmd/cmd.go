// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/chartx/internal/formatter"
	"github.com/urfave/cli/v3"
)

func yearFlag(required bool) *cli.IntFlag {
	return &cli.IntFlag{
		Name:     "year",
		Aliases:  []string{"y"},
		Usage:    "Chart year (1941-2029)",
		Required: required,
	}
}

// serveCommand runs the web app
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web app",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default from config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (default from config)",
			},
		},
		Action: r.Serve,
	}
}

// chartCommand prints a year-end chart
func chartCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chart",
		Usage: "Print the Billboard Year-End Hot 100 for a year",
		Flags: []cli.Flag{
			yearFlag(true),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.Chart,
	}
}

// buildCommand creates the playlist for a year
func buildCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "build",
		Aliases: []string{"create"},
		Usage:   "Authorize with Spotify and create the year's playlist",
		Flags: []cli.Flag{
			yearFlag(true),
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Show progress in the interactive terminal UI",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Summary format: text, markdown, csv or json",
				Value:   string(formatter.FormatText),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the summary to this file",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Write the summary to billboard_<year>.<ext>",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file used while the TUI is running",
				Value: "./tmp/chartx-tui.log",
			},
		},
		Action: r.Build,
	}
}

// previewCommand searches without creating a playlist
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "preview",
		Aliases: []string{"search"},
		Usage:   "Authorize with Spotify and report which songs can be found",
		Flags: []cli.Flag{
			yearFlag(true),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Preview,
	}
}

// historyCommand lists recorded builds
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past playlist builds",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of builds to show",
				Value: 20,
			},
			yearFlag(false),
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show builds with this status (completed, failed, canceled)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the per-song results of a build",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// cacheCommand manages the local chart cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local chart cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached chart years",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove cached charts (one year with --year)",
				Flags:  []cli.Flag{yearFlag(false)},
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write an example config.toml",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to write (default: the --config path)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
