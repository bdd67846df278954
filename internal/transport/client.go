package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/castlebay/halcyon/internal/gate"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/charmbracelet/log"
)

// Authorization placeholders resolved against the live credential at send
// time. Any other non-empty Auth value is sent verbatim, which lets callers
// present a token that is not the live one, such as when revoking it.
const (
	AuthIdentityBasic  = "IDENTITY_BASIC"
	AuthAppBasic       = "APP_BASIC"
	AuthExchangeBearer = "EXCHANGE_BEARER"
	AuthSessionBearer  = "SESSION_BEARER"
)

func isAuthPlaceholder(s string) bool {
	switch s {
	case AuthIdentityBasic, AuthAppBasic, AuthExchangeBearer, AuthSessionBearer:
		return true
	}
	return false
}

// ErrRetryBudgetExceeded wraps the final underlying error once the retry
// policy's attempt count or cumulative wait budget runs out. The underlying
// error stays reachable through errors.As, so callers can still distinguish
// the cause.
var ErrRetryBudgetExceeded = fmt.Errorf("transport: retry budget exhausted")

// Session is the credential surface the executor coordinates with. It is
// implemented by the session manager; the indirection exists because the
// session manager performs its own grants through this same client.
type Session interface {
	// Authorization resolves a placeholder to a header value against the
	// live credential.
	Authorization(placeholder string) (string, error)
	// Refresh drives one coordinated credential refresh on behalf of the
	// caller, identified by its request priority.
	Refresh(ctx context.Context, priority int) error
	// Restart discards the session and reauthenticates from scratch.
	Restart(ctx context.Context) error
	// ShouldForceRefresh reports whether another refresh may be attempted,
	// or the recent refresh history already looks like a storm.
	ShouldForceRefresh() bool
	// Fail marks the session terminally failed with the given cause.
	Fail(err error)
}

// RetryPolicy controls the executor's retry behavior. The zero value is not
// usable; start from DefaultRetryPolicy or PolicyFromConfig.
type RetryPolicy struct {
	MaxAttempts             int
	MaxTotalWait            time.Duration
	HandleRateLimits        bool
	MaxRetryAfter           time.Duration
	CoalesceWaitingRequests bool
	HandleCapacityBackoff   bool
	BackoffStart            time.Duration
	BackoffFactor           float64
	BackoffCap              time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:             5,
		MaxTotalWait:            65 * time.Second,
		HandleRateLimits:        true,
		MaxRetryAfter:           60 * time.Second,
		CoalesceWaitingRequests: true,
		HandleCapacityBackoff:   true,
		BackoffStart:            time.Second,
		BackoffFactor:           1.5,
		BackoffCap:              20 * time.Second,
	}
}

// PolicyFromConfig converts the TOML retry table into a RetryPolicy,
// falling back to defaults for unset numeric fields.
func PolicyFromConfig(rc shared.RetryConfig) RetryPolicy {
	pol := DefaultRetryPolicy()
	if rc.MaxAttempts > 0 {
		pol.MaxAttempts = rc.MaxAttempts
	}
	if rc.MaxTotalWaitSeconds > 0 {
		pol.MaxTotalWait = secondsToDuration(rc.MaxTotalWaitSeconds)
	}
	if rc.MaxRetryAfterSeconds > 0 {
		pol.MaxRetryAfter = secondsToDuration(rc.MaxRetryAfterSeconds)
	}
	if rc.BackoffStartSeconds > 0 {
		pol.BackoffStart = secondsToDuration(rc.BackoffStartSeconds)
	}
	if rc.BackoffFactor > 0 {
		pol.BackoffFactor = rc.BackoffFactor
	}
	if rc.BackoffCapSeconds > 0 {
		pol.BackoffCap = secondsToDuration(rc.BackoffCapSeconds)
	}
	pol.HandleRateLimits = rc.HandleRateLimits
	pol.CoalesceWaitingRequests = rc.CoalesceWaitingRequests
	pol.HandleCapacityBackoff = rc.HandleCapacityBackoff
	return pol
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Request describes one outbound call. At most one of Body, Form and Query
// may be set. Priority above zero skips the refresh-idle wait and marks the
// request eligible to drive a refresh itself when its credential is
// rejected.
type Request struct {
	Route    Route
	Auth     string
	Body     any
	Form     url.Values
	Header   http.Header
	Query    []QueryOperation
	Priority int
	DeviceID bool
}

// Response is a completed request's status, headers and raw body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// Options configures a Client. Zero fields get working defaults.
type Options struct {
	HTTPClient *http.Client
	Logger     *log.Logger
	UserAgent  string
	DeviceID   string
	Policy     RetryPolicy
	Gate       *gate.Gate
}

// Client issues requests against the platform with classification-driven
// retries: rate limits coalesce into shared per-endpoint waits, capacity
// throttles back off exponentially, transient server errors back off
// linearly, and rejected credentials trigger a coordinated refresh before
// the request is retried.
type Client struct {
	http      *http.Client
	logger    *log.Logger
	userAgent string
	deviceID  string
	policy    RetryPolicy
	gate      *gate.Gate
	throttles *ThrottleRegistry
	closing   atomic.Bool

	// session is wired once by Bind before any traffic flows.
	session Session

	sleep func(context.Context, time.Duration) error
}

// New creates a Client from opts.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	pol := opts.Policy
	if pol.MaxAttempts == 0 {
		pol = DefaultRetryPolicy()
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = fmt.Sprintf("halcyon/%s %s", shared.Version, runtime.Version())
	}
	return &Client{
		http:      httpClient,
		logger:    logger,
		userAgent: ua,
		deviceID:  opts.DeviceID,
		policy:    pol,
		gate:      opts.Gate,
		throttles: NewThrottleRegistry(),
		sleep:     sleepContext,
	}
}

// Bind attaches the session manager. Called during wiring, after the
// session is constructed around this client.
func (c *Client) Bind(s Session) {
	c.session = s
}

// Close stops new work. In-flight retry loops observe the flag after their
// current attempt and propagate instead of retrying.
func (c *Client) Close() {
	c.closing.Store(true)
}

// Closing reports whether Close has been called.
func (c *Client) Closing() bool {
	return c.closing.Load()
}

// Jar returns the cookie jar of the underlying HTTP client, if any. The web
// handshake reads its anti-forgery token from here.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// Transport returns the round tripper behind the underlying HTTP client.
// Grant traffic driven by the oauth2 package reuses it, so an injected
// transport sees every request the process makes.
func (c *Client) Transport() http.RoundTripper {
	if c.http.Transport != nil {
		return c.http.Transport
	}
	return http.DefaultTransport
}

// Do executes req under the retry policy.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, _, err := c.execute(ctx, req)
	return resp, err
}

func (c *Client) execute(ctx context.Context, req Request) (*Response, []json.RawMessage, error) {
	if c.closing.Load() {
		return nil, nil, shared.ErrClientClosed
	}

	key := req.Route.Key()
	pol := c.policy

	var (
		tries         int
		resetTries    int
		capacityTries int
		totalSlept    time.Duration
	)

	for {
		var sleepFor time.Duration
		installed := false
		tries++

		if wait, ok := c.throttles.Pending(key); ok {
			c.logger.Debug("waiting for endpoint cooldown",
				"method", req.Route.Method, "url", req.Route.URL, "wait", wait)
		}
		if err := c.throttles.Wait(ctx, key); err != nil {
			return nil, nil, err
		}

		if req.Priority <= 0 && c.gate != nil {
			if err := c.gate.WaitIdle(ctx); err != nil {
				return nil, nil, err
			}
		}

		resp, payloads, err := c.attempt(ctx, req)
		if err == nil {
			return resp, payloads, nil
		}
		if c.closing.Load() {
			return nil, nil, err
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			if !isConnReset(err) || ctx.Err() != nil {
				return nil, nil, err
			}
			// Network blips retry outside the attempt budget, bounded
			// only by the cumulative wait limit.
			tries--
			resetTries++
			sleepFor = 500*time.Millisecond + 2*time.Second*time.Duration(resetTries-1)
			totalSlept += sleepFor
			if pol.MaxTotalWait > 0 && totalSlept > pol.MaxTotalWait {
				return nil, nil, fmt.Errorf("%w (waited %v): %w", ErrRetryBudgetExceeded, totalSlept-sleepFor, err)
			}
			c.logger.Debug("connection reset, retrying",
				"method", req.Route.Method, "url", req.Route.URL, "in", sleepFor)
			if serr := c.sleep(ctx, sleepFor); serr != nil {
				return nil, nil, serr
			}
			continue
		}

		switch apiErr.class() {
		case classInvalidToken:
			if tries >= pol.MaxAttempts {
				return nil, nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExceeded, tries, err)
			}
			if rerr := c.recoverCredential(ctx, req, apiErr); rerr != nil {
				return nil, nil, rerr
			}
			continue

		case classRateLimited, classCapacity:
			tries--
			if apiErr.class() == classRateLimited && pol.HandleRateLimits {
				if apiErr.RetryAfter > pol.MaxRetryAfter {
					return nil, nil, err
				}
				sleepFor = apiErr.RetryAfter + 500*time.Millisecond
				if pol.CoalesceWaitingRequests {
					installed = c.throttles.Install(key, sleepFor)
					if !installed {
						// Another caller owns this cooldown; park on its
						// window at the top of the loop instead of
						// sleeping independently.
						c.logger.Debug("joining endpoint cooldown",
							"method", req.Route.Method, "url", req.Route.URL)
						continue
					}
				}
			} else {
				if !pol.HandleCapacityBackoff {
					return nil, nil, err
				}
				sleepFor = backoffAt(pol, capacityTries)
				capacityTries++
			}

		case classTransient:
			if tries >= pol.MaxAttempts {
				return nil, nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExceeded, tries, err)
			}
			sleepFor = 500*time.Millisecond + 2*time.Second*time.Duration(tries-1)

		default:
			return nil, nil, err
		}

		totalSlept += sleepFor
		if pol.MaxTotalWait > 0 && totalSlept > pol.MaxTotalWait {
			if installed {
				c.throttles.Release(key)
			}
			return nil, nil, fmt.Errorf("%w (waited %v): %w", ErrRetryBudgetExceeded, totalSlept-sleepFor, err)
		}

		c.logger.Debug("retrying request",
			"method", req.Route.Method, "url", req.Route.URL, "in", sleepFor, "attempt", tries)
		serr := c.sleep(ctx, sleepFor)
		// The window owner releases after its own sleep so that waiters
		// resume together once the cooldown has actually elapsed.
		if installed {
			c.throttles.Release(key)
		}
		if serr != nil {
			return nil, nil, serr
		}
	}
}

// recoverCredential handles a rejected-credential response. A nil return
// means the attempt should be retried; any error is terminal for this
// request.
func (c *Client) recoverCredential(ctx context.Context, req Request, apiErr *APIError) error {
	// A literal Auth value never tracks the live credential, so a refresh
	// cannot fix its rejection. KillToken presenting the dying token is the
	// usual case.
	if c.session == nil || !isAuthPlaceholder(req.Auth) {
		return apiErr
	}

	// A refresh that landed while this attempt was in flight has already
	// replaced the credential; retry with the new one.
	if cur, err := c.session.Authorization(req.Auth); err == nil && cur != apiErr.authUsed {
		return nil
	}

	if c.gate == nil {
		return apiErr
	}

	if req.Priority > c.gate.Priority()-1 {
		// This request is the designated refresher.
		if !c.session.ShouldForceRefresh() {
			ferr := fmt.Errorf("%w: credential rejected after repeated refreshes: %w", shared.ErrSessionFailed, apiErr)
			c.session.Fail(ferr)
			return ferr
		}
		if rerr := c.session.Refresh(ctx, req.Priority); rerr != nil {
			if IsCapacityThrottle(rerr) {
				if serr := c.session.Restart(ctx); serr != nil {
					ferr := fmt.Errorf("%w: restart after throttled refresh: %w", shared.ErrSessionFailed, serr)
					c.session.Fail(ferr)
					return ferr
				}
				return nil
			}
			return rerr
		}
		return nil
	}

	if c.gate.Held() {
		// Someone else is already refreshing; retry once they finish.
		return c.gate.WaitIdle(ctx)
	}

	ferr := fmt.Errorf("%w: credential rejected with no refresh in flight: %w", shared.ErrSessionFailed, apiErr)
	c.session.Fail(ferr)
	return ferr
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, []json.RawMessage, error) {
	var authValue string
	if req.Auth != "" {
		v, err := c.resolveAuth(req.Auth)
		if err != nil {
			return nil, nil, err
		}
		authValue = v
	}

	var bodyReader io.Reader
	contentType := ""
	switch {
	case req.Query != nil:
		b, err := json.Marshal(req.Query)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding query operations: %w", err)
		}
		bodyReader = bytes.NewReader(b)
		contentType = "application/json"
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
		contentType = "application/json"
	case req.Form != nil:
		bodyReader = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Route.Method, req.Route.URL, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if authValue != "" {
		httpReq.Header.Set("Authorization", authValue)
	}
	if req.DeviceID && c.deviceID != "" {
		httpReq.Header.Set("X-Halcyon-Device-Id", c.deviceID)
	}

	start := time.Now()
	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Route.Method, req.Route.URL, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("request complete",
		"method", req.Route.Method, "url", req.Route.URL,
		"status", res.StatusCode, "elapsed", time.Since(start))

	if req.Query != nil {
		payloads, qerr := decodeQueryResponse(res.StatusCode, res.Header, body, req.Route, authValue)
		if qerr != nil {
			return nil, nil, qerr
		}
		return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, payloads, nil
	}

	if res.StatusCode >= 400 || hasErrorCode(body) {
		return nil, nil, newAPIError(res.StatusCode, res.Header, body, req.Route, authValue)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: body}, nil, nil
}

func (c *Client) resolveAuth(placeholder string) (string, error) {
	if c.session != nil {
		return c.session.Authorization(placeholder)
	}
	if isAuthPlaceholder(placeholder) {
		return "", shared.ErrNoCredential
	}
	return placeholder, nil
}

// hasErrorCode detects an error envelope delivered with a success status.
func hasErrorCode(body []byte) bool {
	if !bytes.Contains(body, []byte("errorCode")) {
		return false
	}
	var probe struct {
		ErrorCode string `json:"errorCode"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.ErrorCode != ""
}

func backoffAt(pol RetryPolicy, k int) time.Duration {
	d := float64(pol.BackoffStart) * math.Pow(pol.BackoffFactor, float64(k))
	if limit := float64(pol.BackoffCap); d > limit {
		d = limit
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
