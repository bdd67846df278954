package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/services"
	"github.com/castlebay/halcyon/internal/shared"
)

// APIGet issues a GET against one of the platform services through the
// retrying executor and prints the body.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	service := cmd.String("service")
	pretty := cmd.Bool("pretty")

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	r.logger.Info("GET request", "service", service, "path", path)

	resp, err := r.raw.Get(ctx, service, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return r.writeRawResponse(resp, pretty)
}

// APIPost issues a POST with a JSON body.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	service := cmd.String("service")
	data := cmd.String("data")

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	r.logger.Info("POST request", "service", service, "path", path)

	resp, err := r.raw.Post(ctx, service, path, []byte(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	return r.writeRawResponse(resp, true)
}

func (r *Runner) writeRawResponse(resp *services.RawResponse, pretty bool) error {
	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	if _, err := r.output.Write(resp.Body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}
