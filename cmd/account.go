package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/castlebay/halcyon/internal/formatter"
	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/tasks"
)

// Whoami prints the authenticated account.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	account, err := r.account.Account(ctx, r.session.SubjectID())
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}

	return r.writePlain("%s", formatter.FormatAccounts([]models.Account{*account}))
}

// Lookup resolves a single display name, serving from the local cache when
// fresh.
func (r *Runner) Lookup(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: name", shared.ErrMissingArgument)
	}

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	account, err := r.account.AccountByDisplayName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up %q: %w", name, err)
	}
	if err := r.cache.Put(account); err != nil {
		r.logger.Debug("account cache write failed", "error", err)
	}

	return r.writePlain("%s", formatter.FormatAccounts([]models.Account{*account}))
}

// Resolve bulk-resolves ids and display names through the worker-pool
// engine, optionally exporting the roster to a file.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.StringSlice("id")
	names := cmd.StringSlice("name")
	if len(ids) == 0 && len(names) == 0 {
		return fmt.Errorf("%w: at least one --id or --name", shared.ErrMissingArgument)
	}

	if err := r.connect(ctx, connectOpts{noPrompt: true}); err != nil {
		return err
	}

	opts := tasks.ResolveOpts{NumWorkers: cmd.Int("workers")}
	if cmd.Bool("no-cache") {
		opts.CacheMaxAge = -1
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Debug("resolve progress",
				"phase", update.Phase.String(), "step", update.Step, "total", update.Total)
		}
	}()
	drain := func() {
		close(progress)
		wg.Wait()
	}

	format := cmd.String("format")
	output := cmd.String("output")

	if output != "" || (format != "" && format != "txt" && format != "text") {
		result, err := r.engine.ResolveAndExport(ctx, progress, ids, names, tasks.ExportOpts{
			Resolve: opts,
			Format:  format,
			Path:    output,
		})
		drain()
		if err != nil {
			return fmt.Errorf("resolve export failed: %w", err)
		}
		r.writeResolveSummary(result.Resolve)
		return r.writePlain("✓ Exported %d accounts to %s\n", result.Resolve.ResolvedCount, result.Path)
	}

	result, err := r.engine.Resolve(ctx, progress, ids, names, opts)
	drain()
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}

	r.writePlain("%s", formatter.FormatAccounts(result.Accounts()))
	r.writeResolveSummary(result)
	return nil
}

func (r *Runner) writeResolveSummary(result *tasks.ResolveResult) {
	r.writePlainln("Resolved %d/%d (%d from cache, %d failed)",
		result.ResolvedCount, result.TotalQueries, result.CachedCount, result.FailedCount)
	for _, m := range result.Results {
		if m.Error != nil {
			r.writePlain("  ✗ %s: %v\n", m.Query, m.Error)
		}
	}
}
