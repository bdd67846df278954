// package models defines the data model for the credential client
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for records persisted in the local store.
type Model interface {
	ID() string           // ID returns the unique identifier for this record
	CreatedAt() time.Time // CreatedAt returns when this record was created
	UpdatedAt() time.Time // UpdatedAt returns when this record was last updated
	Validate() error      // Validate checks if the record's data is valid and returns an error if not
}

// Auth event kinds recorded in the local event log.
const (
	EventLogin          = "login"
	EventRefresh        = "refresh"
	EventRestart        = "restart"
	EventFailure        = "failure"
	EventLogout         = "logout"
	EventDeviceIssued   = "device_issued"
	EventDeviceDeleted  = "device_deleted"
	EventSessionsKilled = "sessions_killed"
)

// StoredCredential is a device credential mirrored in the local store so
// later runs can authenticate without interactive login. The secret is the
// only copy the platform ever hands out.
type StoredCredential struct {
	subjectID string
	deviceID  string
	secret    string
	label     string
	createdAt time.Time
	updatedAt time.Time
}

// NewStoredCredential creates a credential record with fresh timestamps.
func NewStoredCredential(subjectID, deviceID, secret, label string) *StoredCredential {
	now := time.Now()
	return &StoredCredential{
		subjectID: subjectID,
		deviceID:  deviceID,
		secret:    secret,
		label:     label,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the device id. Device ids are platform-generated identifiers,
// unique per (subject, device) pair.
func (c *StoredCredential) ID() string { return c.deviceID }

func (c *StoredCredential) SubjectID() string    { return c.subjectID }
func (c *StoredCredential) Secret() string       { return c.secret }
func (c *StoredCredential) Label() string        { return c.label }
func (c *StoredCredential) CreatedAt() time.Time { return c.createdAt }
func (c *StoredCredential) UpdatedAt() time.Time { return c.updatedAt }

// SetLabel replaces the human-readable label.
func (c *StoredCredential) SetLabel(label string) {
	c.label = label
	c.updatedAt = time.Now()
}

// SetTimestamps restores persisted timestamps when hydrating from a row.
func (c *StoredCredential) SetTimestamps(created, updated time.Time) {
	c.createdAt = created
	c.updatedAt = updated
}

// Validate checks that the record carries everything a later login needs.
func (c *StoredCredential) Validate() error {
	if c.subjectID == "" {
		return fmt.Errorf("stored credential missing subject id")
	}
	if c.deviceID == "" {
		return fmt.Errorf("stored credential missing device id")
	}
	if c.secret == "" {
		return fmt.Errorf("stored credential missing secret")
	}
	return nil
}

// AuthEvent is one entry in the local auth event log: logins, refreshes,
// restarts, failures and logouts, kept for diagnostics.
type AuthEvent struct {
	ID        int64
	SubjectID string
	Kind      string
	Detail    string
	CreatedAt time.Time
}

// Validate checks the event carries a kind.
func (e *AuthEvent) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("auth event missing kind")
	}
	return nil
}
