package auth

import (
	"time"
)

// Credential is the complete token state of an authenticated session. A
// Credential is immutable once built; refreshes install a replacement rather
// than mutating fields in place, so readers may hold a snapshot safely.
type Credential struct {
	// ExchangeToken is the identity-client access token funding
	// token-exchange mints and code generation.
	ExchangeToken  string
	ExchangeExpiry time.Time

	// SessionToken is the app-client access token carried by ordinary
	// requests.
	SessionToken  string
	SessionExpiry time.Time

	// SessionRefreshSecret renews both tokens through the refresh-token
	// grant.
	SessionRefreshSecret string

	SubjectID  string
	TokenClass string
}

// EarliestExpiry returns the sooner of the two token expiries. Zero expiries
// are ignored; the zero time is returned only when neither is set.
func (c *Credential) EarliestExpiry() time.Time {
	switch {
	case c.ExchangeExpiry.IsZero():
		return c.SessionExpiry
	case c.SessionExpiry.IsZero():
		return c.ExchangeExpiry
	case c.ExchangeExpiry.Before(c.SessionExpiry):
		return c.ExchangeExpiry
	}
	return c.SessionExpiry
}

// DeviceCredential is a durable device-bound login secret. It survives until
// the account's credentials are reset and authenticates without interaction.
type DeviceCredential struct {
	DeviceID  string `json:"deviceId"`
	SubjectID string `json:"accountId"`
	Secret    string `json:"secret"`
}

// TokenSet is the account service's token grant response.
type TokenSet struct {
	AccessToken      string    `json:"access_token"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	AccountID        string    `json:"account_id"`
	ClientID         string    `json:"client_id"`
	TokenType        string    `json:"token_type"`
}

// expiry prefers the server's absolute timestamp over the relative
// expires_in seconds.
func (t TokenSet) expiry(now time.Time) time.Time {
	if !t.ExpiresAt.IsZero() {
		return t.ExpiresAt
	}
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return time.Time{}
}
