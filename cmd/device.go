package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/auth"
	"github.com/castlebay/halcyon/internal/formatter"
	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
)

// DeviceList prints the account's device credentials as the platform sees
// them.
func (r *Runner) DeviceList(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	creds, err := r.account.DeviceCredentials(ctx, r.session.SubjectID())
	if err != nil {
		return fmt.Errorf("listing device credentials: %w", err)
	}

	return r.writePlain("%s", formatter.FormatDeviceCredentials(creds))
}

// DeviceRemove deletes one device credential remotely and drops the local
// mirror when present.
func (r *Runner) DeviceRemove(ctx context.Context, cmd *cli.Command) error {
	deviceID := cmd.StringArg("device-id")
	if deviceID == "" {
		return fmt.Errorf("%w: device-id", shared.ErrMissingArgument)
	}

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}
	subjectID := r.session.SubjectID()

	if err := r.account.DeleteDeviceCredential(ctx, subjectID, deviceID); err != nil {
		return fmt.Errorf("deleting device credential: %w", err)
	}
	if err := r.creds.Delete(subjectID, deviceID); err != nil {
		r.logger.Debug("no local mirror to delete", "device", deviceID, "error", err)
	}

	r.recordEvent(subjectID, models.EventDeviceDeleted, deviceID)
	return r.writePlain("✓ Device credential %s deleted\n", deviceID)
}

// DeviceNew generates a fresh device credential and mirrors it locally.
// The platform returns the secret exactly once, so losing the local copy
// means generating again.
func (r *Runner) DeviceNew(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}
	subjectID := r.session.SubjectID()

	info, err := r.account.CreateDeviceCredential(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("creating device credential: %w", err)
	}

	r.persistDeviceCredential(infoToDetails(info), subjectID)
	return r.writePlain("✓ Device credential %s created and stored\n", info.DeviceID)
}

func infoToDetails(info *models.DeviceCredentialInfo) auth.DeviceCredential {
	return auth.DeviceCredential{
		DeviceID:  info.DeviceID,
		SubjectID: info.SubjectID,
		Secret:    info.Secret,
	}
}
