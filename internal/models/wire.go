// Platform wire types shared by the service clients.
//
// Field names follow the platform's JSON responses.
package models

import "time"

// Account is the public account record returned by lookups.
type Account struct {
	ID            string         `json:"id"`
	DisplayName   string         `json:"displayName"`
	Email         string         `json:"email,omitempty"`
	ExternalAuths []ExternalAuth `json:"externalAuths,omitempty"`
}

// ExternalAuth links an account to an identity on another platform.
type ExternalAuth struct {
	Type        string `json:"type"`
	SubjectID   string `json:"accountId"`
	ExternalID  string `json:"externalAuthId"`
	DisplayName string `json:"externalDisplayName"`
}

// TokenInfo is the verify endpoint's view of the presented token.
type TokenInfo struct {
	Token         string    `json:"token"`
	SessionID     string    `json:"session_id"`
	TokenClass    string    `json:"token_type"`
	ClientID      string    `json:"client_id"`
	ClientService string    `json:"client_service"`
	SubjectID     string    `json:"account_id"`
	ExpiresIn     int       `json:"expires_in"`
	ExpiresAt     time.Time `json:"expires_at"`
	AuthMethod    string    `json:"auth_method"`
	DisplayName   string    `json:"display_name"`
	DeviceID      string    `json:"device_id"`
}

// ExchangeCode is a freshly minted one-time code for a token handoff.
type ExchangeCode struct {
	Code             string `json:"code"`
	CreatingClientID string `json:"creatingClientId"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// DeviceCredentialEvent records where and when a device credential was used.
type DeviceCredentialEvent struct {
	Location  string    `json:"location"`
	IPAddress string    `json:"ipAddress"`
	DateTime  time.Time `json:"dateTime"`
}

// DeviceCredentialInfo is the platform's record of one device credential.
// The secret is present only in the creation response; listings omit it.
type DeviceCredentialInfo struct {
	DeviceID   string                 `json:"deviceId"`
	SubjectID  string                 `json:"accountId"`
	Secret     string                 `json:"secret,omitempty"`
	UserAgent  string                 `json:"userAgent,omitempty"`
	Created    *DeviceCredentialEvent `json:"created,omitempty"`
	LastAccess *DeviceCredentialEvent `json:"lastAccess,omitempty"`
}

// Friend is one entry in the authenticated subject's friend list.
type Friend struct {
	SubjectID string    `json:"accountId"`
	Status    string    `json:"status"`
	Direction string    `json:"direction"`
	Created   time.Time `json:"created"`
	Favorite  bool      `json:"favorite"`
}
