// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, then initialize the database and run migrations",
		Action: r.SetupDatabase,
	}
}

// authCommand manages the cached Spotify session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser and cache the session",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached session and the account it belongs to",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the cached session",
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistsCommand lists the user's playlists.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"ls"},
		Usage:   "List Spotify playlists",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

// curateCommand starts an interactive curation session.
func curateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "curate",
		Usage: "Step through a playlist and drop the tracks you no longer want",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist ID or exact name; prompts when omitted",
			},
			&cli.StringFlag{
				Name:  "rule",
				Usage: "CEL keep rule; tracks it rejects are dropped without review (see 'cull rule vars')",
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Tracks fetched per page (1-100)",
			},
			&cli.FloatFlag{
				Name:  "commit-rate",
				Usage: "Removal requests per second",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Log removals instead of sending them",
			},
			&cli.BoolFlag{
				Name:  "no-art",
				Usage: "Do not render cover art",
			},
		},
		Action: r.Curate,
	}
}

// historyCommand reads back recorded curation runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect past curation runs",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Only runs against this playlist ID",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv or markdown",
						Value:   "text",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run and its removals",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv or markdown",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write the report to run-<number>.<ext>",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// ruleCommand helps write keep rules.
func ruleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "rule",
		Usage: "Write and test keep rules",
		Commands: []*cli.Command{
			{
				Name:  "check",
				Usage: "Compile a rule and, with --playlist, show what it would drop from the first page",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "expr"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Playlist ID to evaluate against",
					},
				},
				Action: r.RuleCheck,
			},
			{
				Name:   "vars",
				Usage:  "List the track fields a rule can use",
				Action: r.RuleVars,
			},
		},
	}
}
