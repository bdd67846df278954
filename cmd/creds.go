package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/formatter"
	"github.com/castlebay/halcyon/internal/shared"
)

// CredsList prints the local credential mirror. Secrets stay in the store.
func (r *Runner) CredsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStore(); err != nil {
		return err
	}

	creds, err := r.creds.List("")
	if err != nil {
		return fmt.Errorf("listing stored credentials: %w", err)
	}

	return r.writePlain("%s", formatter.FormatStoredCredentials(creds))
}

// CredsRemove deletes one locally stored device credential. The platform
// copy is untouched; use 'device rm' to revoke it remotely too.
func (r *Runner) CredsRemove(ctx context.Context, cmd *cli.Command) error {
	subjectID := cmd.StringArg("subject-id")
	deviceID := cmd.StringArg("device-id")
	if subjectID == "" || deviceID == "" {
		return fmt.Errorf("%w: subject-id and device-id", shared.ErrMissingArgument)
	}

	if err := r.openStore(); err != nil {
		return err
	}

	if err := r.creds.Delete(subjectID, deviceID); err != nil {
		return fmt.Errorf("deleting stored credential: %w", err)
	}

	return r.writePlain("✓ Stored credential %s/%s deleted\n", subjectID, deviceID)
}
