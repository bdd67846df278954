// Account service client: token verification, exchange codes, session
// revocation, device credentials and account lookups.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// bulkLookupChunk is the most account ids the bulk endpoint accepts in one
// request.
const bulkLookupChunk = 100

// AccountService talks to the platform's account service.
type AccountService struct {
	service
}

// NewAccountService creates an account service client.
func NewAccountService(opts Options) *AccountService {
	return &AccountService{service: newService(opts, "account")}
}

func (a *AccountService) base() string { return a.cfg.Platform.AccountURL }

// VerifyToken asks the platform to describe the live session token.
func (a *AccountService) VerifyToken(ctx context.Context) (*models.TokenInfo, error) {
	var info models.TokenInfo
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/oauth/verify", nil)
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &info); err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	return &info, nil
}

// GenerateExchangeCode mints a one-time code that hands the session to
// another client.
func (a *AccountService) GenerateExchangeCode(ctx context.Context) (*models.ExchangeCode, error) {
	var code models.ExchangeCode
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/oauth/exchange", nil)
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &code); err != nil {
		return nil, fmt.Errorf("generating exchange code: %w", err)
	}
	return &code, nil
}

// KillOtherSessions revokes every other active session on the account.
func (a *AccountService) KillOtherSessions(ctx context.Context) error {
	route := transport.NewRoute(http.MethodDelete, a.base(),
		"/api/oauth/sessions/kill?killType=OTHERS_ACCOUNT_CLIENT_SERVICE", nil)
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, nil); err != nil {
		return fmt.Errorf("killing other sessions: %w", err)
	}
	a.logger.Info("revoked other sessions")
	return nil
}

// KillToken revokes one token. The dying token authenticates its own
// revocation, and the elevated priority lets the call through during
// shutdown once the gate stops admitting ordinary traffic.
func (a *AccountService) KillToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}
	route := transport.NewRoute(http.MethodDelete, a.base(), "/api/oauth/sessions/kill/{token}",
		map[string]string{"token": token})
	if err := a.do(ctx, transport.Request{
		Route:    route,
		Auth:     "bearer " + token,
		Priority: 1,
	}, nil); err != nil {
		return fmt.Errorf("killing token: %w", err)
	}
	return nil
}

// CreateDeviceCredential registers a new device credential for the subject.
// The response is the only time the platform reveals the secret.
func (a *AccountService) CreateDeviceCredential(ctx context.Context, subjectID string) (*models.DeviceCredentialInfo, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id", shared.ErrMissingArgument)
	}
	var info models.DeviceCredentialInfo
	route := transport.NewRoute(http.MethodPost, a.base(), "/api/public/account/{subjectId}/deviceAuth",
		map[string]string{"subjectId": subjectID})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer, Body: struct{}{}}, &info); err != nil {
		return nil, fmt.Errorf("creating device credential: %w", err)
	}
	a.logger.Info("created device credential", "device_id", info.DeviceID)
	return &info, nil
}

// DeviceCredentials lists the device credentials registered to the subject.
func (a *AccountService) DeviceCredentials(ctx context.Context, subjectID string) ([]models.DeviceCredentialInfo, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id", shared.ErrMissingArgument)
	}
	var infos []models.DeviceCredentialInfo
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/public/account/{subjectId}/deviceAuth",
		map[string]string{"subjectId": subjectID})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &infos); err != nil {
		return nil, fmt.Errorf("listing device credentials: %w", err)
	}
	return infos, nil
}

// DeviceCredential fetches one device credential record.
func (a *AccountService) DeviceCredential(ctx context.Context, subjectID, deviceID string) (*models.DeviceCredentialInfo, error) {
	if subjectID == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: subject id and device id", shared.ErrMissingArgument)
	}
	var info models.DeviceCredentialInfo
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/public/account/{subjectId}/deviceAuth/{deviceId}",
		map[string]string{"subjectId": subjectID, "deviceId": deviceID})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &info); err != nil {
		return nil, fmt.Errorf("fetching device credential: %w", err)
	}
	return &info, nil
}

// DeleteDeviceCredential revokes one device credential.
func (a *AccountService) DeleteDeviceCredential(ctx context.Context, subjectID, deviceID string) error {
	if subjectID == "" || deviceID == "" {
		return fmt.Errorf("%w: subject id and device id", shared.ErrMissingArgument)
	}
	route := transport.NewRoute(http.MethodDelete, a.base(), "/api/public/account/{subjectId}/deviceAuth/{deviceId}",
		map[string]string{"subjectId": subjectID, "deviceId": deviceID})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, nil); err != nil {
		return fmt.Errorf("deleting device credential: %w", err)
	}
	a.logger.Info("deleted device credential", "device_id", deviceID)
	return nil
}

// Account fetches the public record for one account id.
func (a *AccountService) Account(ctx context.Context, subjectID string) (*models.Account, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id", shared.ErrMissingArgument)
	}
	var account models.Account
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/public/account/{subjectId}",
		map[string]string{"subjectId": subjectID})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &account); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return &account, nil
}

// AccountByDisplayName resolves a display name to its account record.
func (a *AccountService) AccountByDisplayName(ctx context.Context, displayName string) (*models.Account, error) {
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name", shared.ErrMissingArgument)
	}
	var account models.Account
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/public/account/displayName/{displayName}",
		map[string]string{"displayName": displayName})
	if err := a.do(ctx, transport.Request{Route: route, Auth: transport.AuthSessionBearer}, &account); err != nil {
		return nil, fmt.Errorf("resolving display name: %w", err)
	}
	return &account, nil
}

// Accounts resolves account records in bulk. Ids are chunked so no single
// request carries more than the endpoint accepts; results keep request order.
func (a *AccountService) Accounts(ctx context.Context, ids []string) ([]models.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	route := transport.NewRoute(http.MethodGet, a.base(), "/api/public/account", nil)

	out := make([]models.Account, 0, len(ids))
	for start := 0; start < len(ids); start += bulkLookupChunk {
		chunk := ids[start:min(start+bulkLookupChunk, len(ids))]

		var accounts []models.Account
		req := transport.Request{
			Route: route.WithQuery(url.Values{"accountId": chunk}),
			Auth:  transport.AuthSessionBearer,
		}
		if err := a.do(ctx, req, &accounts); err != nil {
			return nil, fmt.Errorf("resolving accounts: %w", err)
		}
		out = append(out, accounts...)
	}
	return out, nil
}
