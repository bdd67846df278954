package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/formatter"
	"github.com/castlebay/halcyon/internal/models"
)

// SessionsKillOthers revokes every session of the account except the one
// this process holds.
func (r *Runner) SessionsKillOthers(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	if err := r.account.KillOtherSessions(ctx); err != nil {
		return fmt.Errorf("revoking other sessions: %w", err)
	}

	r.recordEvent(r.session.SubjectID(), models.EventSessionsKilled, "")
	return r.writePlain("✓ Other sessions revoked\n")
}

// FriendsList prints the authenticated account's friend list.
func (r *Runner) FriendsList(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	friends, err := r.social.Friends(ctx)
	if err != nil {
		return fmt.Errorf("listing friends: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(friends, true)
	}
	return r.writePlain("%s", formatter.FormatFriends(friends))
}
