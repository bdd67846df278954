package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// correctiveDateOfBirth is the only corrective action the client can perform
// on its own.
const correctiveDateOfBirth = "date_of_birth_verification"

// DeviceBound authenticates with a durable device credential, requiring no
// interaction. A grant rejected with a server-mandated corrective action of
// an automatable kind performs the correction once and retries; rejected
// login material surfaces as InvalidCredentials for a composite to fall back
// on.
type DeviceBound struct {
	grants  *Grants
	details DeviceCredential
}

// NewDeviceBound builds a source around stored device credential details.
func NewDeviceBound(g *Grants, details DeviceCredential) *DeviceBound {
	return &DeviceBound{grants: g, details: details}
}

// Details returns the device credential this source authenticates with.
func (d *DeviceBound) Details() DeviceCredential {
	return d.details
}

func (d *DeviceBound) Authenticate(ctx context.Context) (*Credential, error) {
	identity, err := d.grants.DeviceAuth(ctx, d.details)
	if err != nil {
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) && apiErr.Code == transport.CodeCorrectiveActionRequired {
			if cerr := d.correct(ctx, apiErr); cerr != nil {
				return nil, cerr
			}
			identity, err = d.grants.DeviceAuth(ctx, d.details)
		}
	}
	if err != nil {
		return nil, translateGrantError(err)
	}
	return d.grants.Mint(ctx, identity)
}

// correct performs the mandated corrective action. Only date-of-birth
// verification can be automated; anything else is fatal for this source.
func (d *DeviceBound) correct(ctx context.Context, apiErr *transport.APIError) error {
	if apiErr.CorrectiveAction != correctiveDateOfBirth || apiErr.Continuation == "" {
		return fmt.Errorf("%w: %q: %w", shared.ErrUnsupportedAction, apiErr.CorrectiveAction, apiErr)
	}

	route := transport.NewRoute(http.MethodPost, d.grants.cfg.Platform.WebURL, "/id/api/corrective/{continuation}",
		map[string]string{"continuation": apiErr.Continuation})
	_, err := d.grants.client.Do(ctx, transport.Request{
		Route:    route,
		Body:     map[string]string{"dateOfBirth": syntheticDateOfBirth()},
		Priority: d.grants.Priority(),
	})
	if err != nil {
		return fmt.Errorf("corrective action %s: %w", apiErr.CorrectiveAction, err)
	}
	return nil
}

func syntheticDateOfBirth() string {
	return fmt.Sprintf("%d-01-01", time.Now().Year()-25)
}
