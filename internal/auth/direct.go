package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/castlebay/halcyon/internal/transport"
)

// Direct authenticates with an email and password through the web handshake:
// anti-forgery token, login form, one-time exchange code, exchange-code
// grant. When the account requires a second factor and a prompt is
// configured, the code is collected interactively and the handshake retried
// from a fresh anti-forgery token.
type Direct struct {
	grants   *Grants
	email    string
	password string
	prompt   PromptFunc
}

// NewDirect builds a Direct source. prompt may be nil, in which case a
// second-factor challenge surfaces as a [SecondFactorError].
func NewDirect(g *Grants, email, password string, prompt PromptFunc) *Direct {
	return &Direct{grants: g, email: email, password: password, prompt: prompt}
}

// Email returns the account identifier this source logs in as.
func (d *Direct) Email() string {
	return d.email
}

func (d *Direct) Authenticate(ctx context.Context) (*Credential, error) {
	code, err := d.webExchangeCode(ctx)
	if err != nil {
		return nil, err
	}

	identity, err := d.grants.ExchangeCode(ctx, code)
	if err != nil {
		return nil, translateGrantError(err)
	}
	return d.grants.Mint(ctx, identity)
}

// webExchangeCode drives the handshake up to the one-time exchange code.
func (d *Direct) webExchangeCode(ctx context.Context) (string, error) {
	secondFactor := ""
	for {
		xsrf, err := d.antiforgery(ctx)
		if err != nil {
			return "", err
		}

		err = d.login(ctx, xsrf, secondFactor)
		if err == nil {
			break
		}
		err = translateGrantError(err)

		var sfe *SecondFactorError
		if !errors.As(err, &sfe) || d.prompt == nil {
			return "", err
		}

		message := fmt.Sprintf("Enter the second factor code for %s", d.email)
		if len(sfe.Methods) > 0 {
			message = fmt.Sprintf("%s (%s)", message, strings.Join(sfe.Methods, " or "))
		}
		secondFactor, err = d.prompt(ctx, message+": ")
		if err != nil {
			return "", fmt.Errorf("collecting second factor: %w", err)
		}
		secondFactor = strings.TrimSpace(secondFactor)
	}

	return d.exchange(ctx)
}

// antiforgery primes the session cookie jar and returns the XSRF token the
// login form must echo back.
func (d *Direct) antiforgery(ctx context.Context) (string, error) {
	route := transport.NewRoute(http.MethodGet, d.grants.cfg.Platform.WebURL, "/id/api/antiforgery", nil)
	if _, err := d.grants.client.Do(ctx, transport.Request{Route: route, Priority: d.grants.Priority()}); err != nil {
		return "", err
	}

	jar := d.grants.client.Jar()
	if jar == nil {
		return "", fmt.Errorf("web handshake requires a cookie jar on the HTTP client")
	}
	u, err := url.Parse(d.grants.cfg.Platform.WebURL)
	if err != nil {
		return "", fmt.Errorf("parsing web url: %w", err)
	}
	for _, c := range jar.Cookies(u) {
		if c.Name == "XSRF-TOKEN" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("anti-forgery response set no XSRF-TOKEN cookie")
}

func (d *Direct) login(ctx context.Context, xsrf, secondFactor string) error {
	body := map[string]string{
		"email":    d.email,
		"password": d.password,
	}
	if secondFactor != "" {
		body["code"] = secondFactor
	}

	header := http.Header{}
	header.Set("X-XSRF-Token", xsrf)

	route := transport.NewRoute(http.MethodPost, d.grants.cfg.Platform.WebURL, "/id/api/login", nil)
	_, err := d.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Body:     body,
		Header:   header,
		Priority: d.grants.Priority(),
		DeviceID: true,
	})
	return err
}

// exchange trades the logged-in web session for a one-time exchange code.
func (d *Direct) exchange(ctx context.Context) (string, error) {
	route := transport.NewRoute(http.MethodGet, d.grants.cfg.Platform.WebURL, "/id/api/exchange", nil)
	resp, err := d.grants.client.Do(ctx, transport.Request{Route: route, Priority: d.grants.Priority()})
	if err != nil {
		return "", err
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := resp.JSON(&out); err != nil {
		return "", err
	}
	if out.Code == "" {
		return "", fmt.Errorf("exchange response carried no code")
	}
	return out.Code, nil
}
