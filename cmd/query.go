package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/services"
	"github.com/castlebay/halcyon/internal/shared"
)

// QueryRun executes one named operation against the batch query endpoint
// and prints its payload.
func (r *Runner) QueryRun(ctx context.Context, cmd *cli.Command) error {
	operation := cmd.StringArg("operation")
	if operation == "" {
		return fmt.Errorf("%w: operation", shared.ErrMissingArgument)
	}

	doc := cmd.String("query")
	if doc == "" {
		return fmt.Errorf("%w: --query", shared.ErrMissingArgument)
	}
	// @path loads the document from a file, mirroring curl's convention.
	if strings.HasPrefix(doc, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(doc, "@"))
		if err != nil {
			return fmt.Errorf("reading query document: %w", err)
		}
		doc = string(data)
	}

	var vars map[string]any
	if raw := cmd.String("vars"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return fmt.Errorf("%w: --vars is not a JSON object: %v", shared.ErrInvalidFlag, err)
		}
	}

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	payload, err := r.query.QueryOne(ctx, services.Operation{
		Name:      operation,
		Variables: vars,
		Query:     doc,
	})
	if err != nil {
		return fmt.Errorf("query %s failed: %w", operation, err)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return r.writePlain("%s\n", payload)
	}
	return r.writeJSON(decoded, true)
}
