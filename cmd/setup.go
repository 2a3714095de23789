package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/cull/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes config.toml from the template when missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
			r.writePlain("✓ Created %s\n", configPath)
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	if !r.config.Credentials.Spotify.Configured() {
		r.writePlainln("Next steps:")
		r.writePlain("1. Create an app at https://developer.spotify.com/dashboard with redirect URI %s\n", redirectURI(r.config))
		r.writePlain("2. Set credentials.spotify.client_id and client_secret in %s\n", configPath)
		r.writePlain("3. Run 'cull auth login'\n")
	}
	return nil
}

func redirectURI(config *shared.Config) string {
	if uri := config.Credentials.Spotify.RedirectURI; uri != "" {
		return uri
	}
	return fmt.Sprintf("http://%s:%d/callback", config.Server.Host, config.Server.Port)
}
