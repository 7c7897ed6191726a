package migrations

import (
	"context"
	"database/sql"
)

// upRecurringTables creates recurring series and exclusion patterns.
// The partial unique index keeps at most one active series per merchant key.
func upRecurringTables(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS recurring_series (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			name_key TEXT NOT NULL,
			amount TEXT NOT NULL DEFAULT '0.00',
			frequency TEXT NOT NULL DEFAULT 'monthly',
			next_due_date TEXT,
			last_seen_date TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			detected_by_system INTEGER NOT NULL DEFAULT 0,
			merchant_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_recurring_one_active
			ON recurring_series(user_id, name_key) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_recurring_user_status ON recurring_series(user_id, status)`,

		`CREATE TABLE IF NOT EXISTS recurring_exclusions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name_pattern TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, name_pattern)
		)`,
	}

	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downRecurringTables(ctx context.Context, tx *sql.Tx) error {
	for _, q := range []string{
		`DROP TABLE IF EXISTS recurring_exclusions`,
		`DROP TABLE IF EXISTS recurring_series`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
