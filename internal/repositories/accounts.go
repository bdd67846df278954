package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/castlebay/halcyon/internal/models"
	"github.com/castlebay/halcyon/internal/shared"
)

// AccountCacheRepository caches resolved account records so bulk resolution
// can skip ids it has seen recently. The full wire payload is stored as JSON
// next to the indexed columns; duplicate puts overwrite in place.
type AccountCacheRepository struct {
	db *sql.DB
}

// NewAccountCacheRepository creates an account cache backed by db.
func NewAccountCacheRepository(db *sql.DB) *AccountCacheRepository {
	return &AccountCacheRepository{db: db}
}

// Put inserts or refreshes a cached account.
func (r *AccountCacheRepository) Put(account *models.Account) error {
	if account == nil || account.ID == "" {
		return fmt.Errorf("failed to cache account: %w", shared.ErrMissingArgument)
	}

	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to cache account: %w", err)
	}

	query := `
		INSERT INTO account_cache (subject_id, display_name, payload, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			display_name = excluded.display_name,
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`

	if _, err := r.db.Exec(query, account.ID, account.DisplayName, string(payload), time.Now()); err != nil {
		return fmt.Errorf("failed to cache account: %w", err)
	}

	return nil
}

// Get returns a cached account no older than maxAge. A non-positive maxAge
// disables the freshness check. A miss reports ErrCacheMiss.
func (r *AccountCacheRepository) Get(subjectID string, maxAge time.Duration) (*models.Account, error) {
	return r.lookup("subject_id = ?", subjectID, maxAge)
}

// ByDisplayName returns a cached account by display name, subject to the
// same freshness rule as Get.
func (r *AccountCacheRepository) ByDisplayName(displayName string, maxAge time.Duration) (*models.Account, error) {
	return r.lookup("display_name = ?", displayName, maxAge)
}

func (r *AccountCacheRepository) lookup(where string, arg string, maxAge time.Duration) (*models.Account, error) {
	var (
		payload   string
		fetchedAt time.Time
	)

	query := "SELECT payload, fetched_at FROM account_cache WHERE " + where
	err := r.db.QueryRow(query, arg).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", arg, ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account cache: %w", err)
	}

	if maxAge > 0 && time.Since(fetchedAt) > maxAge {
		return nil, fmt.Errorf("account %s expired: %w", arg, ErrCacheMiss)
	}

	var account models.Account
	if err := json.Unmarshal([]byte(payload), &account); err != nil {
		return nil, fmt.Errorf("failed to decode cached account: %w", err)
	}

	return &account, nil
}

// Prune deletes entries fetched more than maxAge ago and returns how many
// were removed.
func (r *AccountCacheRepository) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	result, err := r.db.Exec("DELETE FROM account_cache WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune account cache: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// ErrCacheMiss reports that no sufficiently fresh entry exists.
var ErrCacheMiss = errors.New("account cache miss")
