package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/urfave/cli/v3"
)

const dashboardURL = "https://developer.spotify.com/dashboard"

// SetupDatabase writes a config file when none exists, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	config := r.config
	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current settings", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if loaded, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using current settings", "error", err)
			} else {
				config = loaded
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupClient stores the Client ID of the user's Spotify application.
//
// Without an argument it shows the redirect URI to register and prompts until a non-empty id is entered.
func (r *Runner) SetupClient(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	clientID := cmd.StringArg("client-id")
	if clientID == "" {
		r.writePlainHeader("Spotify setup")
		r.writePlain("1. Create an app at %s\n", dashboardURL)
		r.writePlain("2. Add this redirect URI to the app: %s\n", r.config.Server.RedirectURI())
		r.writePlain("3. Paste the app's Client ID below.\n\n")

		for clientID == "" {
			if clientID, err = r.prompt("Client ID: "); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrMissingArgument, err)
			}
			if clientID == "" {
				r.writePlain("Client ID cannot be empty. Please try again.\n")
			}
		}
	}

	if err := st.SetClientID(ctx, clientID); err != nil {
		return err
	}
	r.logger.Info("client id saved")

	r.writePlain("✓ Client ID saved\n")
	return r.writePlainln("Next: run `spotbar auth login` or `spotbar watch`")
}
