package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castlebay/halcyon/internal/shared"
)

// Loopback runs a short-lived localhost HTTP server for one browser login.
// It serves a single CodeHandler, opens the platform authorization page in
// the operator's browser, and waits for the redirect to deliver the code.
type Loopback struct {
	addr     string
	authURL  string
	clientID string
	state    string
	logger   *log.Logger

	handler *CodeHandler
	srv     *http.Server
	ln      net.Listener
}

// NewLoopback creates a listener bound to addr. The authorization URL is
// taken from the platform web base; state is echoed back in the redirect
// and must match.
func NewLoopback(addr, webURL, clientID string, logger *log.Logger) *Loopback {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	state := shared.GenerateID()
	return &Loopback{
		addr:     addr,
		authURL:  webURL,
		clientID: clientID,
		state:    state,
		logger:   logger.With("component", "loopback"),
		handler:  NewCodeHandler(state),
	}
}

// Start binds the listener and begins serving in the background. Must be
// called before AuthorizeURL so the redirect can carry the bound port.
func (l *Loopback) Start() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("binding loopback listener: %w", err)
	}
	l.ln = ln

	router := NewBasicRouter()
	router.Use(RequestLogging(l.logger))
	router.Handler(l.handler)

	l.srv = &http.Server{Handler: router}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.handler.Send(CodeResult{err: fmt.Errorf("loopback server: %w", err)})
		}
	}()

	l.logger.Debug("loopback listener started", "addr", ln.Addr().String())
	return nil
}

// RedirectURL returns the callback URL the platform should redirect to.
// Only valid after Start.
func (l *Loopback) RedirectURL() string {
	return fmt.Sprintf("http://%s/callback", l.ln.Addr().String())
}

// AuthorizeURL returns the platform authorization page to open in the
// browser. Only valid after Start.
func (l *Loopback) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", l.clientID)
	q.Set("redirectUrl", l.RedirectURL())
	q.Set("state", l.state)
	return fmt.Sprintf("%s/id/authorize?%s", l.authURL, q.Encode())
}

// Wait blocks until the redirect arrives or ctx is done, then shuts the
// server down and returns the captured code.
func (l *Loopback) Wait(ctx context.Context) (string, error) {
	defer l.shutdown()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-l.handler.Result():
		if err := result.Error(); err != nil {
			return "", err
		}
		return result.Code, nil
	}
}

func (l *Loopback) shutdown() {
	if l.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.srv.Shutdown(ctx); err != nil {
		l.logger.Debug("loopback shutdown", "err", err)
	}
}

// Supplier adapts the loopback flow to the callback shape the one-time code
// source takes: start the listener, open the browser, wait for the code.
func (l *Loopback) Supplier() func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if err := l.Start(); err != nil {
			return "", err
		}

		authorizeURL := l.AuthorizeURL()
		l.logger.Info("opening browser for login", "url", authorizeURL)
		if err := shared.OpenBrowser(authorizeURL); err != nil {
			l.logger.Warn("could not open browser; open the URL manually", "url", authorizeURL, "err", err)
		}

		return l.Wait(ctx)
	}
}
