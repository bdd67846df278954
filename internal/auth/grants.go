package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// Grants issues token grants against the account service. Standard OAuth2
// grants (authorization_code, refresh_token) are driven through the oauth2
// package; the platform-specific grants (exchange_code, device_auth,
// token_exchange) post through the retrying executor.
//
// All grant traffic carries a priority so it can run while the refresh gate
// is held. The session manager raises it to its elevated level before every
// refresh or reauthentication cycle.
type Grants struct {
	client   *transport.Client
	cfg      *shared.Config
	priority atomic.Int64

	// webHTTP backs the oauth2 package's own POSTs, carrying the same
	// identifying headers the executor sets.
	webHTTP *http.Client
}

// NewGrants wires a grant issuer over the executor and configuration.
func NewGrants(client *transport.Client, cfg *shared.Config) *Grants {
	g := &Grants{
		client: client,
		cfg:    cfg,
		webHTTP: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &headerTransport{
				base:      client.Transport(),
				userAgent: fmt.Sprintf("halcyon/%s", shared.Version),
				deviceID:  cfg.Platform.DeviceID,
			},
		},
	}
	g.priority.Store(1)
	return g
}

// SetPriority raises or lowers the priority attached to subsequent grant
// requests. Grant sequences run one at a time under the refresh gate, so a
// single level suffices.
func (g *Grants) SetPriority(p int) {
	g.priority.Store(int64(p))
}

// Priority returns the priority attached to grant requests.
func (g *Grants) Priority() int {
	return int(g.priority.Load())
}

func (g *Grants) tokenURL() string {
	return g.cfg.Platform.AccountURL + "/api/oauth/token"
}

func (g *Grants) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.cfg.Clients.Identity.ID,
		ClientSecret: g.cfg.Clients.Identity.Secret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  g.tokenURL(),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (g *Grants) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.webHTTP)
}

// ExchangeCode redeems a one-time exchange code for an identity token set.
func (g *Grants) ExchangeCode(ctx context.Context, code string) (TokenSet, error) {
	return g.grant(ctx, transport.AuthIdentityBasic, url.Values{
		"grant_type":    {"exchange_code"},
		"exchange_code": {code},
	})
}

// DeviceAuth redeems a durable device credential for an identity token set.
func (g *Grants) DeviceAuth(ctx context.Context, details DeviceCredential) (TokenSet, error) {
	return g.grant(ctx, transport.AuthIdentityBasic, url.Values{
		"grant_type": {"device_auth"},
		"account_id": {details.SubjectID},
		"device_id":  {details.DeviceID},
		"secret":     {details.Secret},
	})
}

// TokenExchange mints a session token set from a live identity token. Every
// credential source finishes through this grant.
func (g *Grants) TokenExchange(ctx context.Context, subjectToken string) (TokenSet, error) {
	return g.grant(ctx, transport.AuthAppBasic, url.Values{
		"grant_type":    {"token_exchange"},
		"subject_token": {subjectToken},
	})
}

// AuthorizationCode redeems a standard authorization code for an identity
// token set.
func (g *Grants) AuthorizationCode(ctx context.Context, code string) (TokenSet, error) {
	tok, err := g.oauthConfig().Exchange(g.oauthContext(ctx), code)
	if err != nil {
		return TokenSet{}, g.translateOAuthError(err, "authorization_code")
	}
	return tokenSetFromOAuth(tok), nil
}

// RefreshToken renews an identity token set from its refresh secret.
func (g *Grants) RefreshToken(ctx context.Context, secret string) (TokenSet, error) {
	seed := &oauth2.Token{RefreshToken: secret}
	tok, err := g.oauthConfig().TokenSource(g.oauthContext(ctx), seed).Token()
	if err != nil {
		return TokenSet{}, g.translateOAuthError(err, "refresh_token")
	}
	return tokenSetFromOAuth(tok), nil
}

// Mint completes an identity grant into a full credential by exchanging the
// identity token for a session token set.
func (g *Grants) Mint(ctx context.Context, identity TokenSet) (*Credential, error) {
	session, err := g.TokenExchange(ctx, identity.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("minting session token: %w", err)
	}

	now := time.Now()
	class := session.TokenType
	if class == "" {
		class = "bearer"
	}
	return &Credential{
		ExchangeToken:        identity.AccessToken,
		ExchangeExpiry:       identity.expiry(now),
		SessionToken:         session.AccessToken,
		SessionExpiry:        session.expiry(now),
		SessionRefreshSecret: identity.RefreshToken,
		SubjectID:            identity.AccountID,
		TokenClass:           class,
	}, nil
}

func (g *Grants) grant(ctx context.Context, clientAuth string, form url.Values) (TokenSet, error) {
	route := transport.NewRoute(http.MethodPost, g.cfg.Platform.AccountURL, "/api/oauth/token", nil)
	resp, err := g.client.Do(ctx, transport.Request{
		Route:    route,
		Auth:     clientAuth,
		Form:     form,
		Priority: g.Priority(),
		DeviceID: true,
	})
	if err != nil {
		return TokenSet{}, err
	}

	var ts TokenSet
	if err := resp.JSON(&ts); err != nil {
		return TokenSet{}, fmt.Errorf("decoding token grant: %w", err)
	}
	return ts, nil
}

// translateOAuthError converts the oauth2 package's retrieval failure into
// the same envelope type the executor decodes, so classification and the
// failure taxonomy apply uniformly.
func (g *Grants) translateOAuthError(err error, grantType string) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		route := transport.RawRoute(http.MethodPost, g.tokenURL())
		return transport.DecodeError(rerr.Response.StatusCode, rerr.Response.Header, rerr.Body, route)
	}
	return fmt.Errorf("%s grant: %w", grantType, err)
}

func tokenSetFromOAuth(tok *oauth2.Token) TokenSet {
	ts := TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		TokenType:    tok.TokenType,
	}
	if v, ok := tok.Extra("account_id").(string); ok {
		ts.AccountID = v
	}
	if v, ok := tok.Extra("client_id").(string); ok {
		ts.ClientID = v
	}
	if v, ok := tok.Extra("expires_at").(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			ts.ExpiresAt = t
		}
	}
	if v, ok := tok.Extra("refresh_expires_at").(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			ts.RefreshExpiresAt = t
		}
	}
	return ts
}

// headerTransport stamps the identifying headers on requests made outside
// the executor.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	deviceID  string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	if t.deviceID != "" {
		req.Header.Set("X-Halcyon-Device-Id", t.deviceID)
	}
	return t.base.RoundTrip(req)
}
