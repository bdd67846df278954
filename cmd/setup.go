package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/shared"
)

// Setup writes the example config (when missing) and brings the local store
// schema up to date.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("creating config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)

		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading created config: %w", err)
		}
		r.config = config
	} else {
		r.logger.Info("config file already exists", "path", configPath)
	}

	r.logger.Info("initializing local store", "path", r.config.Database.Path)
	if err := r.openStore(); err != nil {
		return err
	}

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", configPath)
	r.writePlain("Store: %s\n", r.config.Database.Path)
	r.writePlainln("Fill in [auth] or [clients] in the config, then run 'halcyon login'.")
	return nil
}
