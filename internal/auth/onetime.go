package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/castlebay/halcyon/internal/shared"
)

// CodeKind selects which grant a one-time code goes through.
type CodeKind string

const (
	// KindExchange is a code minted by the platform's exchange endpoint.
	KindExchange CodeKind = "exchange"
	// KindAuthorization is a standard OAuth2 authorization code.
	KindAuthorization CodeKind = "authorization"
)

// OneTimeCode authenticates with a single-use code. Codes are short-lived
// (about five minutes) and never survive a failed redemption, so a supplier
// is resolved exactly once per authentication attempt and an expired code
// surfaces rather than being retried.
type OneTimeCode struct {
	grants   *Grants
	kind     CodeKind
	code     string
	supplier func(ctx context.Context) (string, error)
}

// NewOneTimeCode builds a source around a literal code.
func NewOneTimeCode(g *Grants, kind CodeKind, code string) *OneTimeCode {
	return &OneTimeCode{grants: g, kind: kind, code: code}
}

// NewOneTimeCodeSupplier builds a source that obtains its code on demand,
// such as from an interactive prompt or a loopback callback server.
func NewOneTimeCodeSupplier(g *Grants, kind CodeKind, supplier func(ctx context.Context) (string, error)) *OneTimeCode {
	return &OneTimeCode{grants: g, kind: kind, supplier: supplier}
}

func (o *OneTimeCode) Authenticate(ctx context.Context) (*Credential, error) {
	code := o.code
	if o.supplier != nil {
		supplied, err := o.supplier(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving one-time code: %w", err)
		}
		code = supplied
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty one-time code", shared.ErrMissingArgument)
	}

	var (
		identity TokenSet
		err      error
	)
	switch o.kind {
	case KindAuthorization:
		identity, err = o.grants.AuthorizationCode(ctx, code)
	default:
		identity, err = o.grants.ExchangeCode(ctx, code)
	}
	if err != nil {
		return nil, translateGrantError(err)
	}
	return o.grants.Mint(ctx, identity)
}
