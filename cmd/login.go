package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/formatter"
	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
)

// Login authenticates through the composite chain and reports the session.
// A device credential issued along the way is persisted, so the next run
// authenticates without interaction.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	err := r.connect(ctx, connectOpts{
		code:        cmd.String("code"),
		browser:     cmd.Bool("browser"),
		noPrompt:    cmd.Bool("no-prompt"),
		killOthers:  cmd.Bool("kill-others"),
		freshDevice: cmd.Bool("fresh-device"),
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	r.writePlain("✓ Logged in\n\n")
	return r.writePlain("%s", formatter.FormatSnapshot(r.session.Snapshot()))
}

// Status authenticates non-interactively from the stored credential and
// verifies the session token against the platform.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) || errors.Is(err, shared.ErrInvalidConfig) {
			r.writePlain("✗ Not logged in\n")
			return nil
		}
		return err
	}

	info, err := r.account.VerifyToken(ctx)
	if err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}

	r.writePlain("✓ Session verified\n\n")
	r.writePlain("%s\n", formatter.FormatTokenInfo(info))
	return r.writePlain("%s", formatter.FormatSnapshot(r.session.Snapshot()))
}

// Logout revokes the live session token and deletes the device credential
// on both sides, so nothing survives for the next run.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) || errors.Is(err, shared.ErrInvalidConfig) {
			r.writePlain("Not logged in, nothing to do\n")
			return nil
		}
		return err
	}

	subjectID := r.session.SubjectID()

	if stored, err := r.creds.Latest(subjectID); err == nil {
		if err := r.account.DeleteDeviceCredential(ctx, subjectID, stored.ID()); err != nil {
			r.logger.Warn("remote device credential deletion failed", "device", stored.ID(), "error", err)
		}
		if err := r.creds.Delete(subjectID, stored.ID()); err != nil {
			r.logger.Warn("local device credential deletion failed", "device", stored.ID(), "error", err)
		} else {
			r.logger.Info("device credential deleted", "device", stored.ID())
		}
	}

	if cred := r.session.Credential(); cred != nil {
		if err := r.account.KillToken(ctx, cred.SessionToken); err != nil {
			r.logger.Warn("session token revocation failed", "error", err)
		}
	}

	r.recordEvent(subjectID, models.EventLogout, "")
	r.session.Close()
	r.session = nil

	return r.writePlain("✓ Logged out\n")
}
