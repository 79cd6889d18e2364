// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// watchCommand returns the top-level command that runs the now-playing TUI.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"tui", "ui"},
		Usage:   "Show the currently playing track and keep it up to date",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Serve Prometheus metrics while watching (overrides [metrics] enabled)",
			},
		},
		Action: r.Watch,
	}
}

// statusCommand performs a single now-playing fetch.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Fetch and classify the currently playing track once",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the state update as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Status,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in to Spotify in the browser (Authorization Code with PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored access token",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a client id and access token are stored",
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand handles setup operations for database and the Spotify application.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "client",
				Usage: "Store the Client ID of your Spotify application",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "client-id"},
				},
				Action: r.SetupClient,
			},
		},
	}
}

// settingsCommand manages the stored polling settings
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "settings",
		Aliases: []string{"options"},
		Usage:   "Show and change polling and display settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the current settings",
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
				Action: r.SettingsShow,
			},
			{
				Name:  "set",
				Usage: "Change one setting, e.g. `settings set playingInterval 3`",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "key"},
					&cli.StringArg{Name: "value"},
				},
				Action: r.SettingsSet,
			},
			{
				Name:   "reset",
				Usage:  "Restore default intervals and album display (keeps the client id)",
				Action: r.SettingsReset,
			},
			{
				Name:  "clear",
				Usage: "Delete all stored data, including the client id and access token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: r.SettingsClear,
			},
		},
	}
}
