package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Open opens the SQLite database and applies the pragmas the engine relies
// on: foreign keys for the ledger/tax-event relationship, WAL so NAV reads
// don't block fund-flow settlement writes, and a busy timeout so concurrent
// ETL runs queue instead of failing.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	// SQLite allows one writer at a time; serializing writes in the pool
	// keeps settlement transactions from tripping over each other.
	db.SetMaxOpenConns(1)

	return db, nil
}

// HealthCheck verifies the database connection is alive.
func HealthCheck(db *sql.DB) error {
	return db.Ping()
}
