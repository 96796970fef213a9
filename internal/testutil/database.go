package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite" // Test Package
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically cleaned up when the test completes.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    db := testutil.SetupTestDB(t)
//	    // db is ready to use with schema created
//	}
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// In-memory database (destroyed when connection closes)
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// The in-memory database lives per-connection; more than one connection
	// would see different empty databases.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = MEMORY", // Faster for tests
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to set pragma: %v", err)
		}
	}

	if err := createTestSchema(db); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// createTestSchema creates all database tables for testing.
// Schema is synchronized with the production migrations.
func createTestSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE investor (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(255),
			current_shares TEXT NOT NULL DEFAULT '0',
			net_investment TEXT NOT NULL DEFAULT '0',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE nav_record (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			date DATE NOT NULL UNIQUE,
			portfolio_value TEXT NOT NULL,
			total_shares TEXT NOT NULL,
			nav_per_share TEXT NOT NULL,
			day_change TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE ledger_entry (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			investor_id VARCHAR(36) NOT NULL,
			date DATE NOT NULL,
			kind VARCHAR(12) NOT NULL,
			amount TEXT NOT NULL,
			nav_per_share TEXT NOT NULL,
			shares_transacted TEXT NOT NULL,
			basis_delta TEXT NOT NULL,
			flow_request_id VARCHAR(36),
			reversal_of VARCHAR(36),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(investor_id) REFERENCES investor(id),
			FOREIGN KEY(reversal_of) REFERENCES ledger_entry(id)
		);

		CREATE TABLE tax_event (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			investor_id VARCHAR(36) NOT NULL,
			date DATE NOT NULL,
			withdrawal_amount TEXT NOT NULL,
			realized_gain TEXT NOT NULL,
			tax_due TEXT NOT NULL,
			policy VARCHAR(12) NOT NULL,
			ledger_entry_id VARCHAR(36) NOT NULL,
			compensation_of VARCHAR(36),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(investor_id) REFERENCES investor(id),
			FOREIGN KEY(ledger_entry_id) REFERENCES ledger_entry(id),
			FOREIGN KEY(compensation_of) REFERENCES tax_event(id)
		);

		CREATE TABLE canonical_trade (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			source VARCHAR(20) NOT NULL,
			brokerage_transaction_id VARCHAR(100) NOT NULL,
			trade_date DATE NOT NULL,
			trade_type VARCHAR(15) NOT NULL,
			category VARCHAR(15) NOT NULL,
			symbol VARCHAR(10),
			quantity TEXT NOT NULL DEFAULT '0',
			price TEXT NOT NULL DEFAULT '0',
			amount TEXT NOT NULL DEFAULT '0',
			currency VARCHAR(3) NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_trade_source_txn UNIQUE (source, brokerage_transaction_id)
		);

		CREATE TABLE raw_brokerage_transaction (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			source VARCHAR(20) NOT NULL,
			brokerage_transaction_id VARCHAR(100) NOT NULL,
			transaction_date DATE NOT NULL,
			raw_type VARCHAR(30) NOT NULL,
			symbol VARCHAR(10),
			description TEXT,
			quantity TEXT NOT NULL DEFAULT '0',
			price TEXT NOT NULL DEFAULT '0',
			amount TEXT NOT NULL DEFAULT '0',
			currency VARCHAR(3) NOT NULL,
			etl_status VARCHAR(12) NOT NULL,
			etl_error TEXT,
			trade_id VARCHAR(36),
			imported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT unique_raw_source_txn UNIQUE (source, brokerage_transaction_id),
			FOREIGN KEY(trade_id) REFERENCES canonical_trade(id)
		);

		CREATE TABLE fund_flow_request (
			id VARCHAR(36) NOT NULL PRIMARY KEY,
			investor_id VARCHAR(36) NOT NULL,
			flow_type VARCHAR(12) NOT NULL,
			requested_amount TEXT NOT NULL,
			status VARCHAR(15) NOT NULL,
			effective_date DATE NOT NULL,
			matched_raw_id VARCHAR(36) UNIQUE,
			ledger_entry_id VARCHAR(36),
			shares_transacted TEXT NOT NULL DEFAULT '0',
			nav_per_share TEXT NOT NULL DEFAULT '0',
			realized_gain TEXT NOT NULL DEFAULT '0',
			tax_withheld TEXT NOT NULL DEFAULT '0',
			net_proceeds TEXT NOT NULL DEFAULT '0',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			processed_at DATETIME,
			FOREIGN KEY(investor_id) REFERENCES investor(id),
			FOREIGN KEY(matched_raw_id) REFERENCES raw_brokerage_transaction(id),
			FOREIGN KEY(ledger_entry_id) REFERENCES ledger_entry(id)
		);

		CREATE TABLE provider_config (
			source VARCHAR(20) NOT NULL PRIMARY KEY,
			token_encrypted TEXT NOT NULL,
			query_id VARCHAR(100),
			token_expires_at DATETIME,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	_, err := db.Exec(schema)
	return err
}
