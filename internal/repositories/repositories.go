// package repositories provides the SQLite persistence layer for the local
// credential mirror and the auth event log.
//
// Schema is managed by the migration runner in the shared package.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/castlebay/halcyon/internal/shared"
)

// Open opens the store at path and brings the schema up to date. The path
// can be ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := shared.OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating credential store: %w", err)
	}
	return db, nil
}
