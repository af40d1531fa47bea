// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// newApp builds the root command. Global flags are read by [Runner.loadConfig] before any action runs.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "plexio",
		Usage:   "Export, import and tidy Plex playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.loadConfig,
		Commands: r.register(),

		// playlist names may contain commas
		DisableSliceFlagSeparator: true,
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// loginCommand signs in to plex.tv and stores the server connection.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in with a plex.tv PIN and pick a server",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the PIN to be approved",
				Value: 120 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "poll",
				Usage: "PIN polling interval",
				Value: 2 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the sign-in URL instead of opening a browser",
			},
		},
		Action: r.Login,
	}
}

// playlistsCommand handles operations on the server's playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Plex playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List playlists on the server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "export",
				Usage: "Export playlists to a JSON document or CSV",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist name to export (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every playlist",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, or directory with --bulk",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json or csv",
						Value:   "json",
					},
					&cli.BoolFlag{
						Name:  "bulk",
						Usage: "Write one file per playlist plus export_manifest.json",
					},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:  "delete",
				Usage: "Delete playlists from the server",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Playlist name to delete (repeatable)",
						Required: true,
					},
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: r.PlaylistsDelete,
			},
			{
				Name:  "sort",
				Usage: "Recreate a playlist ordered by year, then title",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.PlaylistsSort,
			},
		},
	}
}

// previewCommand lists the playlists inside an export file.
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "preview",
		Usage: "List the playlist names in an export file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Action: r.Preview,
	}
}

// importCommand reconciles an export file against the server.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Recreate playlists from an export file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Only import this playlist (repeatable, default all)",
			},
			&cli.StringSliceFlag{
				Name:  "rename",
				Usage: "Import a playlist under a new name, as old=new (repeatable)",
			},
			&cli.StringFlag{
				Name:  "on-conflict",
				Usage: "What to do when a target name exists: replace, rename or skip",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics here after the import (overrides [import].metrics_file)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
		},
		Action: r.Import,
	}
}

// missingCommand renders the missing-items report of the last import.
func missingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "missing",
		Usage: "Show the items the last import could not match",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "md, txt or json",
				Value:   "md",
			},
		},
		Action: r.Missing,
	}
}

// historyCommand reads recorded import runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Import run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent import runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run with its outcomes and missing items",
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

// tuiCommand returns the top-level TUI command for interactive playlist management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive playlist manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Export file imported with the i key",
			},
		},
		Action: r.TUI,
	}
}
