package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/session"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/ui"
)

// Watch holds the session open and renders it in the TUI until the
// operator quits or the session fails terminally. A terminal failure is
// returned so the process exits non-zero.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: cmd.Bool("no-prompt")}); err != nil {
		return err
	}

	// Log lines would tear the TUI; keep them quiet while it runs.
	shared.SetLogLevel(r.logger, log.ErrorLevel)
	defer shared.SetLogLevel(r.logger, log.InfoLevel)

	err := ui.Run(ctx, r.session, r.events)
	if err == nil {
		return nil
	}
	if r.session.State() == session.StateFailed {
		return fmt.Errorf("%w: %v", shared.ErrSessionFailed, err)
	}
	return err
}
