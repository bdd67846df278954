package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
)

// CredentialRepository mirrors issued device credentials in SQLite so later
// runs can restart a session without an interactive login. Rows are keyed by
// (subject id, device id); re-issuing a credential for the same pair
// overwrites the stored secret in place.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a credential repository backed by db.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Put inserts or updates the stored credential. The creation timestamp of an
// existing row is preserved; an empty incoming label keeps the stored one so
// rotation flows do not erase operator naming.
func (r *CredentialRepository) Put(cred *models.StoredCredential) error {
	if cred == nil {
		return fmt.Errorf("failed to store credential: %w", shared.ErrMissingArgument)
	}
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	query := `
		INSERT INTO device_credentials (subject_id, device_id, secret, label, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, device_id) DO UPDATE SET
			secret = excluded.secret,
			label = CASE WHEN excluded.label = '' THEN device_credentials.label ELSE excluded.label END,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		cred.SubjectID(),
		cred.ID(),
		cred.Secret(),
		cred.Label(),
		cred.CreatedAt(),
		cred.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	return nil
}

// Get retrieves the credential stored for the (subject id, device id) pair.
// Returns shared.ErrCredentialNotFound when no row matches.
func (r *CredentialRepository) Get(subjectID, deviceID string) (*models.StoredCredential, error) {
	query := `
		SELECT subject_id, device_id, secret, label, created_at, updated_at
		FROM device_credentials
		WHERE subject_id = ? AND device_id = ?
	`

	cred, err := scanCredential(r.db.QueryRow(query, subjectID, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get credential: %w", shared.ErrCredentialNotFound)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return cred, nil
}

// Latest returns the most recently updated credential, optionally narrowed
// to one subject. This is what a plain `halcyon login` restores from.
func (r *CredentialRepository) Latest(subjectID string) (*models.StoredCredential, error) {
	query := `
		SELECT subject_id, device_id, secret, label, created_at, updated_at
		FROM device_credentials
	`
	args := []any{}
	if subjectID != "" {
		query += " WHERE subject_id = ?"
		args = append(args, subjectID)
	}
	query += " ORDER BY updated_at DESC, id DESC LIMIT 1"

	cred, err := scanCredential(r.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get latest credential: %w", shared.ErrCredentialNotFound)
		}
		return nil, fmt.Errorf("failed to get latest credential: %w", err)
	}

	return cred, nil
}

// List returns stored credentials ordered oldest first. An empty subjectID
// lists every subject.
func (r *CredentialRepository) List(subjectID string) ([]*models.StoredCredential, error) {
	query := `
		SELECT subject_id, device_id, secret, label, created_at, updated_at
		FROM device_credentials
	`
	args := []any{}
	if subjectID != "" {
		query += " WHERE subject_id = ?"
		args = append(args, subjectID)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.StoredCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to list credentials: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	return creds, nil
}

// Delete removes the stored credential for the (subject id, device id) pair.
// Returns shared.ErrCredentialNotFound when no row matches.
func (r *CredentialRepository) Delete(subjectID, deviceID string) error {
	result, err := r.db.Exec(
		"DELETE FROM device_credentials WHERE subject_id = ? AND device_id = ?",
		subjectID, deviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to delete credential: %w", shared.ErrCredentialNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*models.StoredCredential, error) {
	var (
		subjectID, deviceID  string
		secret, label        string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&subjectID, &deviceID, &secret, &label, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	cred := models.NewStoredCredential(subjectID, deviceID, secret, label)
	cred.SetTimestamps(createdAt, updatedAt)
	return cred, nil
}
