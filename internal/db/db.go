// Package db wraps the sqlite connection used for session and track
// persistence and exposes schema migration helpers.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the shared sql.DB handle.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the sqlite database at path and applies the
// connection pragmas. The schema itself is managed by migrations; see
// MigrateUp.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	// Single writer; sqlite serialises writes anyway and modernc's driver
	// returns SQLITE_BUSY under concurrent write pressure otherwise.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &DB{sqlDB}, nil
}
