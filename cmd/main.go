package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("HALCYON_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("invalid config %s: %v", configPath, err)
		}
		config = loaded
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})
	defer runner.shutdown()

	app := &cli.Command{
		Name:     "halcyon",
		Usage:    "Authenticated session runtime for the Halcyon platform",
		Version:  shared.Version,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		runner.shutdown()
		switch {
		case errors.Is(err, shared.ErrSessionFailed):
			logger.Errorf("session failed: %v", err)
			os.Exit(3)
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
