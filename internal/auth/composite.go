package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// CompositeOptions configures a Composite source. Sources left nil are
// skipped; at least one must be set, or a prompt supplied so an exchange
// code can be collected interactively.
type CompositeOptions struct {
	Device *DeviceBound
	Direct *Direct
	Code   *OneTimeCode

	// KillOtherSessions revokes the account's other active sessions after a
	// successful interactive login.
	KillOtherSessions bool
	// DeleteExisting removes previously issued device credentials before
	// generating the new one.
	DeleteExisting bool

	// Prompt collects an exchange code when every configured source has
	// fallen through.
	Prompt PromptFunc

	// OnCredentialIssued fires once per newly generated device credential so
	// the caller can persist it. When nil, no credential is generated.
	OnCredentialIssued func(details DeviceCredential, subjectID string)

	Logger *log.Logger
}

// Composite tries its sources in a fixed order of decreasing secrecy:
// device credential, then the login form, then a one-time code. Each source
// falls through only on failures the next one can do better on. After a
// successful interactive login it generates a durable device credential and
// hands it to the caller, so the next run needs no interaction.
type Composite struct {
	grants *Grants
	opts   CompositeOptions
	logger *log.Logger
}

// NewComposite wires a composite source over the grant issuer.
func NewComposite(g *Grants, opts CompositeOptions) *Composite {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Composite{grants: g, opts: opts, logger: logger}
}

func (c *Composite) Authenticate(ctx context.Context) (*Credential, error) {
	var reasons []string

	if c.opts.Device != nil {
		cred, err := c.opts.Device.Authenticate(ctx)
		if err == nil {
			return cred, nil
		}
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			return nil, err
		}
		c.logger.Warn("device credential rejected, falling back", "error", err)
		reasons = append(reasons, "the stored device credential was rejected")
	}

	if c.opts.Direct != nil {
		cred, err := c.opts.Direct.Authenticate(ctx)
		if err == nil {
			return c.finish(ctx, cred)
		}
		switch {
		case errors.Is(err, shared.ErrSecondFactorRequired):
			c.logger.Warn("login requires a second factor, falling back", "error", err)
			reasons = append(reasons, "the login requires a second factor")
		case errors.Is(err, shared.ErrInvalidCredentials):
			c.logger.Warn("login rejected, falling back", "error", err)
			reasons = append(reasons, "the email and password were rejected")
		default:
			return nil, err
		}
	}

	code := c.opts.Code
	if code == nil && c.opts.Prompt != nil {
		message := c.promptMessage(reasons)
		code = NewOneTimeCodeSupplier(c.grants, KindExchange, func(ctx context.Context) (string, error) {
			return c.opts.Prompt(ctx, message)
		})
	}
	if code != nil {
		cred, err := code.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return c.finish(ctx, cred)
	}

	if len(reasons) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidCredentials, strings.Join(reasons, "; "))
	}
	return nil, fmt.Errorf("%w: no credential source configured", shared.ErrInvalidConfig)
}

func (c *Composite) promptMessage(reasons []string) string {
	account := "this account"
	if c.opts.Direct != nil && c.opts.Direct.Email() != "" {
		account = c.opts.Direct.Email()
	}
	message := fmt.Sprintf("Enter an exchange code for %s: ", account)
	if len(reasons) > 0 {
		return strings.Join(reasons, "; ") + ".\n" + message
	}
	return message
}

// finish performs the post-login work for interactive paths: optional
// session revocation, then generation of a durable device credential so
// future runs can skip interaction entirely.
func (c *Composite) finish(ctx context.Context, cred *Credential) (*Credential, error) {
	bearer := "bearer " + cred.SessionToken

	if c.opts.KillOtherSessions {
		if err := c.killOtherSessions(ctx, bearer); err != nil {
			return nil, fmt.Errorf("revoking other sessions: %w", err)
		}
		c.logger.Debug("revoked other sessions", "subject", cred.SubjectID)
	}

	if c.opts.OnCredentialIssued == nil {
		return cred, nil
	}

	if c.opts.DeleteExisting {
		if err := c.deleteExistingCredentials(ctx, cred.SubjectID, bearer); err != nil {
			return nil, fmt.Errorf("deleting existing device credentials: %w", err)
		}
	}

	details, err := c.generateCredential(ctx, cred.SubjectID, bearer)
	if err != nil {
		return nil, fmt.Errorf("generating device credential: %w", err)
	}
	c.logger.Debug("issued device credential", "subject", cred.SubjectID, "device", details.DeviceID)
	c.opts.OnCredentialIssued(details, cred.SubjectID)

	return cred, nil
}

func (c *Composite) killOtherSessions(ctx context.Context, bearer string) error {
	route := transport.NewRoute(http.MethodDelete, c.grants.cfg.Platform.AccountURL,
		"/api/oauth/sessions/kill?killType=OTHERS_ACCOUNT_CLIENT_SERVICE", nil)
	_, err := c.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Auth:     bearer,
		Priority: c.grants.Priority(),
	})
	return err
}

func (c *Composite) deleteExistingCredentials(ctx context.Context, subjectID, bearer string) error {
	route := transport.NewRoute(http.MethodGet, c.grants.cfg.Platform.AccountURL,
		"/api/public/account/{subjectId}/deviceAuth", map[string]string{"subjectId": subjectID})
	resp, err := c.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Auth:     bearer,
		Priority: c.grants.Priority(),
	})
	if err != nil {
		return err
	}

	var existing []DeviceCredential
	if err := resp.JSON(&existing); err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)
	for _, dc := range existing {
		grp.Go(func() error {
			return c.deleteCredential(gctx, subjectID, dc.DeviceID, bearer)
		})
	}
	return grp.Wait()
}

func (c *Composite) deleteCredential(ctx context.Context, subjectID, deviceID, bearer string) error {
	route := transport.NewRoute(http.MethodDelete, c.grants.cfg.Platform.AccountURL,
		"/api/public/account/{subjectId}/deviceAuth/{deviceId}",
		map[string]string{"subjectId": subjectID, "deviceId": deviceID})
	_, err := c.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Auth:     bearer,
		Priority: c.grants.Priority(),
	})
	return err
}

func (c *Composite) generateCredential(ctx context.Context, subjectID, bearer string) (DeviceCredential, error) {
	route := transport.NewRoute(http.MethodPost, c.grants.cfg.Platform.AccountURL,
		"/api/public/account/{subjectId}/deviceAuth", map[string]string{"subjectId": subjectID})
	resp, err := c.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Auth:     bearer,
		Priority: c.grants.Priority(),
		DeviceID: true,
	})
	if err != nil {
		return DeviceCredential{}, err
	}

	var details DeviceCredential
	if err := resp.JSON(&details); err != nil {
		return DeviceCredential{}, err
	}
	return details, nil
}
