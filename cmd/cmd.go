// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func providerIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "provider-id",
		Aliases:  []string{"p"},
		Usage:    "Spotify user id",
		Required: true,
	}
}

// serveCommand runs the web application.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the login pages and credentials API",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// keysCommand manages API keys.
func keysCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Manage API keys",
		Commands: []*cli.Command{
			{
				Name:   "issue",
				Usage:  "Issue a new API key for a user, replacing the old one",
				Flags:  []cli.Flag{configFlag(), providerIDFlag()},
				Action: r.KeysIssue,
			},
		},
	}
}

// usersCommand inspects and moderates stored users.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Inspect stored users",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a stored user without token values",
				Flags: []cli.Flag{
					configFlag(),
					providerIDFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UsersShow,
			},
			{
				Name:  "ban",
				Usage: "Block a user's API key from the credentials API",
				Flags: []cli.Flag{
					configFlag(),
					providerIDFlag(),
					&cli.BoolFlag{
						Name:  "undo",
						Usage: "Lift the ban instead",
					},
				},
				Action: r.UsersBan,
			},
			{
				Name:   "count",
				Usage:  "Print the number of stored users",
				Flags:  []cli.Flag{configFlag()},
				Action: r.UsersCount,
			},
		},
	}
}

// credsCommand calls a running credentials API.
func credsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "creds",
		Usage: "Credentials API client",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Exchange an API key for the current Spotify tokens",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key",
						Aliases:  []string{"k"},
						Usage:    "API key",
						Sources:  cli.EnvVars("NOWPLAYING_API_KEY"),
						Required: true,
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Base URL of the credentials API",
						Value: "http://127.0.0.1:3000",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CredsGet,
			},
		},
	}
}
