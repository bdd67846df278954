package tasks

import (
	"context"
	"fmt"

	"github.com/castlebay/halcyon/internal/formatter"
)

// ExportOpts configures a resolve-and-export run.
type ExportOpts struct {
	Resolve ResolveOpts
	Format  string // json, csv, markdown, txt (default: json)
	Path    string // Output path (default: derived from format)
}

// ExportResult describes what a resolve-and-export run produced.
type ExportResult struct {
	Resolve *ResolveResult
	Path    string
}

// ResolveAndExport resolves the queries and writes the successfully resolved
// accounts to a file. Failed queries are reported in the result, not in the
// file; a run where every query failed writes nothing.
func (e *ResolveEngine) ResolveAndExport(ctx context.Context, progress chan<- ProgressUpdate, ids, names []string, opts ExportOpts) (*ExportResult, error) {
	resolved, err := e.Resolve(ctx, progress, ids, names, opts.Resolve)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Resolve: resolved}
	if resolved.ResolvedCount == 0 {
		return result, fmt.Errorf("no queries resolved - nothing to export")
	}

	e.sendProgress(progress, exportUpdate(opts.Path))
	path, err := formatter.WriteAccountsExport(resolved.Accounts(), opts.Format, opts.Path)
	if err != nil {
		return result, fmt.Errorf("writing export: %w", err)
	}

	result.Path = path
	return result, nil
}
