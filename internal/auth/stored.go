package auth

import (
	"context"
)

// StoredRefresh authenticates with a previously saved refresh secret,
// exchanging it directly for a fresh token pair. The secret is long-lived
// but single-lineage: redemption rotates it.
type StoredRefresh struct {
	grants *Grants
	secret string
}

// NewStoredRefresh builds a source around a saved refresh secret.
func NewStoredRefresh(g *Grants, secret string) *StoredRefresh {
	return &StoredRefresh{grants: g, secret: secret}
}

func (s *StoredRefresh) Authenticate(ctx context.Context) (*Credential, error) {
	identity, err := s.grants.RefreshToken(ctx, s.secret)
	if err != nil {
		return nil, translateGrantError(err)
	}
	return s.grants.Mint(ctx, identity)
}
