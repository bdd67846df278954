// package tasks implements bulk operations against the platform.
//
// The core abstraction is ResolveEngine, which turns mixed batches of
// account ids and display names into account records. Operations emit
// progress updates via channels for non-blocking status reporting to the
// CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// AccountResolver is the slice of the account service the engine needs.
type AccountResolver interface {
	// Accounts resolves ids in bulk; ids the platform does not know are
	// simply absent from the result.
	Accounts(ctx context.Context, ids []string) ([]models.Account, error)
	// AccountByDisplayName resolves one display name.
	AccountByDisplayName(ctx context.Context, displayName string) (*models.Account, error)
}

// AccountCache is an optional local cache consulted before the network and
// fed with every fresh result. Implemented by repositories.AccountCacheRepository.
type AccountCache interface {
	Get(subjectID string, maxAge time.Duration) (*models.Account, error)
	ByDisplayName(displayName string, maxAge time.Duration) (*models.Account, error)
	Put(account *models.Account) error
}

// ResolveOpts configures one bulk resolution run.
type ResolveOpts struct {
	NumWorkers  int           // Concurrent display-name workers (default: 5, capped at 10)
	RateLimit   float64       // Display-name requests per second (default: 5)
	CacheMaxAge time.Duration // Cache freshness window (default: 24h; negative disables the cache)
}

// MatchResult is the outcome for one query (an id or a display name).
type MatchResult struct {
	Query     string          // The id or display name as given
	Account   *models.Account // Resolved record (nil on failure)
	FromCache bool            // Served locally without a network call
	Error     error           // Failure reason for this query
}

// ResolveResult aggregates a full run.
type ResolveResult struct {
	Results       []MatchResult
	TotalQueries  int
	ResolvedCount int
	CachedCount   int
	FailedCount   int
}

// Accounts returns the successfully resolved records in result order.
func (r *ResolveResult) Accounts() []models.Account {
	out := make([]models.Account, 0, r.ResolvedCount)
	for _, m := range r.Results {
		if m.Account != nil {
			out = append(out, *m.Account)
		}
	}
	return out
}

// Engine defines bulk operations exposed to the CLI.
type Engine interface {
	// Resolve turns account ids and display names into account records.
	Resolve(ctx context.Context, progress chan<- ProgressUpdate, ids, names []string, opts ResolveOpts) (*ResolveResult, error)
}

// ResolveEngine implements Engine against the account service, with an
// optional read-through cache.
type ResolveEngine struct {
	accounts AccountResolver
	cache    AccountCache
}

// NewResolveEngine creates a ResolveEngine. cache may be nil.
func NewResolveEngine(accounts AccountResolver, cache AccountCache) *ResolveEngine {
	return &ResolveEngine{accounts: accounts, cache: cache}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls the run.
func (e *ResolveEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Resolve resolves ids through the bulk endpoint and display names through a
// rate-limited worker pool. Individual lookup failures are recorded per
// query; only cancellation and terminal session failure abort the run.
func (e *ResolveEngine) Resolve(ctx context.Context, progress chan<- ProgressUpdate, ids, names []string, opts ResolveOpts) (*ResolveResult, error) {
	if e.accounts == nil {
		return nil, fmt.Errorf("%w: account service not initialized", shared.ErrMissingArgument)
	}
	if len(ids) == 0 && len(names) == 0 {
		return nil, fmt.Errorf("%w: nothing to resolve", shared.ErrMissingArgument)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.CacheMaxAge == 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}

	result := &ResolveResult{
		TotalQueries: len(ids) + len(names),
		Results:      make([]MatchResult, 0, len(ids)+len(names)),
	}

	idMatches, missing := e.fromCacheByID(progress, ids, opts)
	if err := e.resolveIDs(ctx, progress, idMatches, missing); err != nil {
		return nil, err
	}
	result.Results = append(result.Results, flatten(ids, idMatches)...)

	nameMatches, err := e.resolveNames(ctx, progress, names, opts)
	if err != nil {
		return nil, err
	}
	result.Results = append(result.Results, flatten(names, nameMatches)...)

	for _, m := range result.Results {
		switch {
		case m.Error != nil:
			result.FailedCount++
		case m.FromCache:
			result.ResolvedCount++
			result.CachedCount++
		default:
			result.ResolvedCount++
		}
	}

	e.sendProgress(progress, doneUpdate(result.ResolvedCount, result.TotalQueries))
	return result, nil
}

// fromCacheByID serves what it can locally and returns the ids that still
// need the network.
func (e *ResolveEngine) fromCacheByID(progress chan<- ProgressUpdate, ids []string, opts ResolveOpts) (map[string]*MatchResult, []string) {
	matches := make(map[string]*MatchResult, len(ids))
	var missing []string

	if len(ids) > 0 {
		e.sendProgress(progress, cacheUpdate(len(ids)))
	}
	for _, id := range ids {
		if _, dup := matches[id]; dup {
			continue
		}
		m := &MatchResult{Query: id}
		matches[id] = m

		if e.cache != nil && opts.CacheMaxAge > 0 {
			if account, err := e.cache.Get(id, opts.CacheMaxAge); err == nil {
				m.Account = account
				m.FromCache = true
				continue
			}
		}
		missing = append(missing, id)
	}
	return matches, missing
}

// resolveIDs fills matches for the missing ids via the bulk endpoint.
func (e *ResolveEngine) resolveIDs(ctx context.Context, progress chan<- ProgressUpdate, matches map[string]*MatchResult, missing []string) error {
	if len(missing) == 0 {
		return nil
	}

	e.sendProgress(progress, resolveIDsUpdate(len(missing)))
	accounts, err := e.accounts.Accounts(ctx, missing)
	if err != nil {
		return fmt.Errorf("bulk account lookup: %w", err)
	}

	found := make(map[string]*models.Account, len(accounts))
	for i := range accounts {
		found[accounts[i].ID] = &accounts[i]
	}
	for _, id := range missing {
		m := matches[id]
		account, ok := found[id]
		if !ok {
			m.Error = fmt.Errorf("account %s not found", id)
			continue
		}
		m.Account = account
		e.cachePut(account)
	}
	return nil
}

// resolveNames fans display names out over a rate-limited worker pool.
func (e *ResolveEngine) resolveNames(ctx context.Context, progress chan<- ProgressUpdate, names []string, opts ResolveOpts) (map[string]*MatchResult, error) {
	matches := make(map[string]*MatchResult, len(names))
	if len(names) == 0 {
		return matches, nil
	}

	jobs := make(chan string, len(names))
	for _, name := range names {
		if _, dup := matches[name]; dup {
			continue
		}
		matches[name] = &MatchResult{Query: name}
		jobs <- name
	}
	close(jobs)

	e.sendProgress(progress, resolveNamesUpdate(0, len(matches), ""))
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	var (
		mu   sync.Mutex
		step int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.NumWorkers; i++ {
		g.Go(func() error {
			for name := range jobs {
				m := matches[name]

				if e.cache != nil && opts.CacheMaxAge > 0 {
					if account, err := e.cache.ByDisplayName(name, opts.CacheMaxAge); err == nil {
						m.Account = account
						m.FromCache = true
						e.step(progress, &mu, &step, len(matches), name)
						continue
					}
				}

				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				account, err := e.accounts.AccountByDisplayName(gctx, name)
				if err != nil {
					if fatalLookup(gctx, err) {
						return err
					}
					m.Error = err
				} else {
					m.Account = account
					e.cachePut(account)
				}
				e.step(progress, &mu, &step, len(matches), name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("display name lookup: %w", err)
	}
	return matches, nil
}

func (e *ResolveEngine) step(progress chan<- ProgressUpdate, mu *sync.Mutex, step *int, total int, name string) {
	mu.Lock()
	*step++
	current := *step
	mu.Unlock()
	e.sendProgress(progress, resolveNamesUpdate(current, total, name))
}

func (e *ResolveEngine) cachePut(account *models.Account) {
	if e.cache == nil || account == nil {
		return
	}
	// cache writes are best effort
	_ = e.cache.Put(account)
}

// flatten orders match results by the original query order, skipping
// queries deduplicated away.
func flatten(queries []string, matches map[string]*MatchResult) []MatchResult {
	out := make([]MatchResult, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, q := range queries {
		if m, ok := matches[q]; ok && !seen[q] {
			out = append(out, *m)
			seen[q] = true
		}
	}
	return out
}

// fatalLookup reports whether a per-query failure should abort the whole
// run rather than be recorded against the query.
func fatalLookup(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, shared.ErrSessionFailed) ||
		errors.Is(err, shared.ErrClientClosed)
}
