package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	versions, err := shared.AppliedVersions(db)
	if err != nil {
		return err
	}

	return r.writeLines(
		r.palette.Success("Database ready"),
		r.palette.Field("Path", config.Database.Path),
		r.palette.Field("Migrations", fmt.Sprint(len(versions))),
	)
}

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writeLines(
		r.palette.Success("Config written to "+path),
		r.palette.Help("Set the Spotify credentials and session secret before running serve."),
	)
}
