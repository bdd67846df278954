// package services implements typed clients for the platform's account,
// social and query services
//
// Every client issues its traffic through the shared transport executor, so
// retries, throttle windows and credential recovery apply uniformly.
package services

import (
	"context"
	"fmt"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
	"github.com/charmbracelet/log"
)

// Identity names the authenticated subject for account-scoped routes.
// The session manager implements it.
type Identity interface {
	// SubjectID returns the authenticated account id, or "" before login.
	SubjectID() string
}

// Options configures a service client. Client and Config are required;
// Identity is required only by clients serving subject-scoped routes.
type Options struct {
	Client   *transport.Client
	Config   *shared.Config
	Identity Identity
	Logger   *log.Logger
}

// service carries the dependencies every client shares.
type service struct {
	client   *transport.Client
	cfg      *shared.Config
	identity Identity
	logger   *log.Logger
}

func newService(opts Options, component string) service {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return service{
		client:   opts.Client,
		cfg:      opts.Config,
		identity: opts.Identity,
		logger:   logger.With("component", component),
	}
}

// do issues req and decodes the JSON body into result when result is non-nil.
func (s *service) do(ctx context.Context, req transport.Request, result any) error {
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return resp.JSON(result)
}

// subject resolves the authenticated account id.
func (s *service) subject() (string, error) {
	if s.identity == nil {
		return "", fmt.Errorf("%w: no identity bound", shared.ErrInvalidConfig)
	}
	id := s.identity.SubjectID()
	if id == "" {
		return "", shared.ErrNoCredential
	}
	return id, nil
}
