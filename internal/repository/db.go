package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/meshpay/creditledger/internal/domain"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			wallet_address TEXT PRIMARY KEY,
			credit_score INTEGER NOT NULL,
			total_payments_made INTEGER NOT NULL DEFAULT 0,
			total_payments_received INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			last_updated DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_credit_score ON agents(credit_score)`,

		`CREATE TABLE IF NOT EXISTS payment_events (
			event_id TEXT PRIMARY KEY,
			payer_wallet TEXT NOT NULL,
			payee_wallet TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			due_date DATETIME NOT NULL,
			payment_date DATETIME,
			status TEXT NOT NULL,
			days_overdue INTEGER NOT NULL DEFAULT 0,
			reported_at DATETIME NOT NULL,
			reporter_wallet TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_payer ON payment_events(payer_wallet)`,
		`CREATE INDEX IF NOT EXISTS idx_events_payee ON payment_events(payee_wallet)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status ON payment_events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_due_date ON payment_events(due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_reported_at ON payment_events(reported_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_payer_status ON payment_events(payer_wallet, status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_payee_status ON payment_events(payee_wallet, status)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
