package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castlebay/halcyon/internal/auth"
	"github.com/castlebay/halcyon/internal/gate"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// State is a session lifecycle phase.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const (
	// refreshHistory and stormWindow bound restart churn: once this many
	// credentials have been installed inside the window, stale-credential
	// detection stops forcing further refreshes.
	refreshHistory = 3
	stormWindow    = 20 * time.Second

	// loopRetryDelay spaces out scheduled refresh attempts after a
	// transient failure.
	loopRetryDelay = 30 * time.Second

	defaultRefreshMargin = 5 * time.Minute
)

// Options configures a [Manager]. Source, Grants and Config are required;
// everything else defaults.
type Options struct {
	Source auth.Source
	Grants *auth.Grants
	Config *shared.Config

	// Gate must be the same instance the transport client coordinates on.
	// A fresh gate is created when nil.
	Gate   *gate.Gate
	Logger *log.Logger

	// RefreshMargin is how long before the earliest token expiry the
	// background loop renews the credential. Defaults to five minutes.
	RefreshMargin time.Duration

	OnState   func(from, to State)
	OnRefresh func(cred *auth.Credential)
	OnFailure func(err error)
}

// Manager owns the live credential and its lifecycle: initial
// authentication, scheduled and demand-driven refreshes, restarts, and the
// terminal failure surface. It implements [transport.Session].
type Manager struct {
	source auth.Source
	grants *auth.Grants
	cfg    *shared.Config
	g      *gate.Gate
	logger *log.Logger
	margin time.Duration

	onState   func(from, to State)
	onRefresh func(*auth.Credential)
	onFailure func(error)

	mu        sync.RWMutex
	state     State
	cred      *auth.Credential
	seq       uint64
	installs  int
	restarts  int
	refreshes []time.Time
	terminal  error
	started   bool

	refreshCh chan struct{}
	bumpCh    chan struct{}
	stopCh    chan struct{}
	failedCh  chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	doneOnce  sync.Once
}

var _ transport.Session = (*Manager)(nil)

// New builds a Manager from opts.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	g := opts.Gate
	if g == nil {
		g = gate.New()
	}
	margin := opts.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	return &Manager{
		source:    opts.Source,
		grants:    opts.Grants,
		cfg:       opts.Config,
		g:         g,
		logger:    logger.With("component", "session"),
		margin:    margin,
		onState:   opts.OnState,
		onRefresh: opts.OnRefresh,
		onFailure: opts.OnFailure,
		refreshCh: make(chan struct{}, 1),
		bumpCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		failedCh:  make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Gate returns the refresh gate shared with the transport client.
func (m *Manager) Gate() *gate.Gate {
	return m.g
}

// Start performs the initial authentication and launches the background
// refresh loop. A failed Start leaves the manager unauthenticated so the
// caller can correct its inputs and try again.
func (m *Manager) Start(ctx context.Context) error {
	if m.source == nil {
		return fmt.Errorf("%w: no credential source", shared.ErrInvalidConfig)
	}
	select {
	case <-m.stopCh:
		return shared.ErrClientClosed
	default:
	}
	if !m.casState(StateUnauthenticated, StateAuthenticating) {
		if err := m.Err(); err != nil {
			return err
		}
		return fmt.Errorf("session already started")
	}

	prio := m.g.Elevate()
	if err := m.g.Acquire(ctx, prio); err != nil {
		m.casState(StateAuthenticating, StateUnauthenticated)
		return err
	}
	defer m.g.Release()

	m.grants.SetPriority(prio)
	m.logger.Info("authenticating")
	cred, err := m.source.Authenticate(ctx)
	if err != nil {
		m.casState(StateAuthenticating, StateUnauthenticated)
		return fmt.Errorf("authenticating: %w", err)
	}

	m.install(cred)
	m.casState(StateAuthenticating, StateAuthenticated)
	m.logger.Info("authenticated",
		"subject", cred.SubjectID,
		"expires", cred.EarliestExpiry())

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.loop(ctx)
	return nil
}

// Close stops the background loop and fails the gate with a shutdown cause
// so queued waiters resolve instead of hanging. Safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.g.Fail(shared.ErrClientClosed)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if !started {
			m.finishLoop()
		}
	})
}

// Wait blocks until the session fails terminally, the manager is closed, or
// ctx ends. A clean close returns nil; terminal failure returns its cause.
func (m *Manager) Wait(ctx context.Context) error {
	select {
	case <-m.failedCh:
		return m.Err()
	default:
	}
	select {
	case <-m.failedCh:
		return m.Err()
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the background refresh loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.doneCh
}

// RequestRefresh asks the background loop for an immediate refresh cycle.
// Signals coalesce; at most one request is pending at a time.
func (m *Manager) RequestRefresh() {
	select {
	case m.refreshCh <- struct{}{}:
	default:
	}
}

// loop schedules refreshes ahead of the earliest token expiry, racing the
// timer against explicit refresh requests. It exits on failure or shutdown.
func (m *Manager) loop(ctx context.Context) {
	defer m.finishLoop()

	var retryIn time.Duration
	for {
		select {
		case <-m.bumpCh:
		default:
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if retryIn > 0 {
			timer = time.NewTimer(retryIn)
			timerC = timer.C
		} else if cred := m.Credential(); cred != nil {
			if exp := cred.EarliestExpiry(); !exp.IsZero() {
				timer = time.NewTimer(time.Until(exp) - m.margin)
				timerC = timer.C
			}
		}

		refresh := false
		select {
		case <-ctx.Done():
		case <-m.stopCh:
		case <-m.failedCh:
		case <-m.refreshCh:
			refresh = true
		case <-m.bumpCh:
			// Credential replaced elsewhere; recompute the schedule.
		case <-timerC:
			refresh = true
		}
		if timer != nil {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-m.failedCh:
			return
		default:
		}
		if !refresh {
			continue
		}

		retryIn = 0
		err := m.Refresh(ctx, 0)
		switch {
		case err == nil:
		case errors.Is(err, shared.ErrSessionFailed),
			errors.Is(err, shared.ErrClientClosed),
			errors.Is(err, gate.ErrFailed),
			ctx.Err() != nil:
			return
		case transport.IsCapacityThrottle(err):
			m.logger.Warn("refresh throttled, restarting session", "cause", err)
			if rerr := m.Restart(ctx); rerr != nil {
				if isShutdown(ctx, rerr) || errors.Is(rerr, shared.ErrSessionFailed) {
					return
				}
				m.fail(fmt.Errorf("%w: restart after throttled refresh: %w", shared.ErrSessionFailed, rerr))
				return
			}
		default:
			m.logger.Warn("scheduled refresh failed, will retry",
				"cause", err, "retry_in", loopRetryDelay)
			retryIn = loopRetryDelay
		}
	}
}

// Refresh renews the credential through the refresh-token grant, falling
// back to full reauthentication when the refresh secret is rejected.
// Concurrent callers collapse into one grant: whoever waited behind a
// completed refresh returns satisfied without issuing its own. priority
// identifies the driving request; the refresh itself always runs at a
// freshly elevated priority so its grant traffic passes the held gate.
func (m *Manager) Refresh(ctx context.Context, priority int) error {
	seq := m.sequence()
	prio := m.g.Elevate()
	if err := m.g.Acquire(ctx, prio); err != nil {
		return err
	}
	defer m.g.Release()

	if m.sequence() != seq {
		return nil
	}
	if !m.casState(StateAuthenticated, StateRefreshing) {
		if err := m.Err(); err != nil {
			return err
		}
		return shared.ErrNoCredential
	}

	m.grants.SetPriority(prio)
	cred := m.Credential()
	m.logger.Debug("refreshing credential",
		"subject", cred.SubjectID, "requested_by", priority, "priority", prio)

	ts, err := m.grants.RefreshToken(ctx, cred.SessionRefreshSecret)
	if err == nil {
		var next *auth.Credential
		next, err = m.grants.Mint(ctx, ts)
		if err == nil {
			m.install(next)
			m.casState(StateRefreshing, StateAuthenticated)
			m.logger.Debug("credential refreshed",
				"subject", next.SubjectID, "expires", next.EarliestExpiry())
			return nil
		}
	}

	if transport.ErrorCode(err) == transport.CodeInvalidRefreshToken {
		m.logger.Warn("refresh secret rejected, reauthenticating")
		return m.reauthenticate(ctx)
	}
	if !isFatalRefreshError(ctx, err) {
		m.casState(StateRefreshing, StateAuthenticated)
		return err
	}

	ferr := fmt.Errorf("%w: refresh: %w", shared.ErrSessionFailed, err)
	m.fail(ferr)
	return ferr
}

// reauthenticate runs the full credential source under the held gate after
// the refresh secret was rejected.
func (m *Manager) reauthenticate(ctx context.Context) error {
	if m.source == nil {
		ferr := fmt.Errorf("%w: refresh secret rejected with no credential source to fall back to", shared.ErrSessionFailed)
		m.fail(ferr)
		return ferr
	}

	cred, err := m.source.Authenticate(ctx)
	if err != nil {
		if isShutdown(ctx, err) {
			m.casState(StateRefreshing, StateAuthenticated)
			return err
		}
		ferr := fmt.Errorf("%w: reauthentication: %w", shared.ErrSessionFailed, err)
		m.fail(ferr)
		return ferr
	}

	m.install(cred)
	m.casState(StateRefreshing, StateAuthenticated)
	m.logger.Info("reauthenticated", "subject", cred.SubjectID)
	return nil
}

// Restart tears down the credential state and reauthenticates from scratch.
// The subject must stay the same across the restart.
func (m *Manager) Restart(ctx context.Context) error {
	if m.source == nil {
		return fmt.Errorf("%w: no credential source", shared.ErrInvalidConfig)
	}
	seq := m.sequence()
	prio := m.g.Elevate()
	if err := m.g.Acquire(ctx, prio); err != nil {
		return err
	}
	defer m.g.Release()

	if m.sequence() != seq {
		return nil
	}
	if !m.casState(StateAuthenticated, StateRefreshing) {
		if err := m.Err(); err != nil {
			return err
		}
		return shared.ErrNoCredential
	}

	m.mu.Lock()
	old := m.cred
	m.cred = nil
	m.mu.Unlock()

	m.grants.SetPriority(prio)
	m.logger.Warn("restarting session")

	cred, err := m.source.Authenticate(ctx)
	if err != nil {
		m.casState(StateRefreshing, StateUnauthenticated)
		return fmt.Errorf("restarting session: %w", err)
	}
	if old != nil && old.SubjectID != "" && cred.SubjectID != old.SubjectID {
		ferr := fmt.Errorf("%w: restart resolved subject %s, expected %s",
			shared.ErrSessionFailed, cred.SubjectID, old.SubjectID)
		m.fail(ferr)
		return ferr
	}

	m.install(cred)
	m.mu.Lock()
	m.restarts++
	m.mu.Unlock()
	m.casState(StateRefreshing, StateAuthenticated)
	m.logger.Info("session restarted", "subject", cred.SubjectID)
	return nil
}

// ShouldForceRefresh reports whether stale-credential detection may drive
// another refresh, or the recent install history already looks like a storm.
func (m *Manager) ShouldForceRefresh() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.refreshes) < refreshHistory {
		return true
	}
	cutoff := time.Now().Add(-stormWindow)
	for _, at := range m.refreshes {
		if at.Before(cutoff) {
			return true
		}
	}
	return false
}

// Authorization resolves a placeholder to a header value. Client pairs come
// from configuration, bearer placeholders from the live credential. Unknown
// values pass through verbatim.
func (m *Manager) Authorization(placeholder string) (string, error) {
	switch placeholder {
	case transport.AuthIdentityBasic:
		return basicAuth(m.cfg.Clients.Identity), nil
	case transport.AuthAppBasic:
		return basicAuth(m.cfg.Clients.App), nil
	case transport.AuthExchangeBearer:
		cred := m.Credential()
		if cred == nil || cred.ExchangeToken == "" {
			return "", shared.ErrNoCredential
		}
		return cred.TokenClass + " " + cred.ExchangeToken, nil
	case transport.AuthSessionBearer:
		cred := m.Credential()
		if cred == nil || cred.SessionToken == "" {
			return "", shared.ErrNoCredential
		}
		return cred.TokenClass + " " + cred.SessionToken, nil
	}
	return placeholder, nil
}

// Fail transitions the session to its terminal state, releasing every gate
// waiter. The first cause wins; later calls are no-ops.
func (m *Manager) Fail(err error) {
	m.fail(err)
}

// Credential returns the live credential, or nil before authentication and
// during a restart teardown.
func (m *Manager) Credential() *auth.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

// SubjectID returns the authenticated account id, or "" before the first
// credential is installed.
func (m *Manager) SubjectID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return ""
	}
	return m.cred.SubjectID
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the terminal failure cause, or nil while the session is
// healthy.
func (m *Manager) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.terminal
}

// Snapshot is a point-in-time view of the session for status displays.
type Snapshot struct {
	State          State
	SubjectID      string
	ExchangeExpiry time.Time
	SessionExpiry  time.Time

	// Refreshes counts completed refresh cycles since the initial
	// authentication; Restarts counts the full teardown cycles among them.
	Refreshes   int
	Restarts    int
	LastRefresh time.Time
	Err         error
}

// Snapshot returns the current session view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		State:    m.state,
		Restarts: m.restarts,
		Err:      m.terminal,
	}
	if m.installs > 0 {
		s.Refreshes = m.installs - 1
	}
	if len(m.refreshes) > 0 {
		s.LastRefresh = m.refreshes[len(m.refreshes)-1]
	}
	if m.cred != nil {
		s.SubjectID = m.cred.SubjectID
		s.ExchangeExpiry = m.cred.ExchangeExpiry
		s.SessionExpiry = m.cred.SessionExpiry
	}
	return s
}

// install replaces the live credential and wakes the scheduler.
func (m *Manager) install(cred *auth.Credential) {
	now := time.Now()
	m.mu.Lock()
	m.cred = cred
	m.seq++
	m.installs++
	m.refreshes = append(m.refreshes, now)
	if len(m.refreshes) > refreshHistory {
		m.refreshes = m.refreshes[len(m.refreshes)-refreshHistory:]
	}
	m.mu.Unlock()

	select {
	case m.bumpCh <- struct{}{}:
	default:
	}
	if m.onRefresh != nil {
		m.onRefresh(cred)
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.state = StateFailed
	m.terminal = err
	close(m.failedCh)
	m.mu.Unlock()

	m.g.Fail(err)
	m.logger.Error("session failed", "cause", err)
	if m.onState != nil {
		m.onState(from, StateFailed)
	}
	if m.onFailure != nil {
		m.onFailure(err)
	}
}

func (m *Manager) casState(from, to State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()
	if m.onState != nil {
		m.onState(from, to)
	}
	return true
}

func (m *Manager) sequence() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seq
}

func (m *Manager) finishLoop() {
	m.doneOnce.Do(func() { close(m.doneCh) })
}

func basicAuth(pair shared.ClientPair) string {
	raw := pair.ID + ":" + pair.Secret
	return "basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// isShutdown reports whether err comes from cancellation or teardown rather
// than the platform.
func isShutdown(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, shared.ErrClientClosed) ||
		errors.Is(err, gate.ErrFailed)
}

// isFatalRefreshError reports whether a failed refresh grant is
// unrecoverable for the session as a whole. Throttles, transient server
// errors, network-level failures and shutdown all leave the session intact
// for a later retry; a decoded platform rejection does not.
func isFatalRefreshError(ctx context.Context, err error) bool {
	if isShutdown(ctx, err) || transport.IsCapacityThrottle(err) || transport.IsTransient(err) {
		return false
	}
	var apiErr *transport.APIError
	return errors.As(err, &apiErr)
}
