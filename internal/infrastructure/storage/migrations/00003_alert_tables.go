package migrations

import (
	"context"
	"database/sql"
)

// upAlertTables creates alert rules, budgets and notifications.
// last_triggered_at uses a fixed-width UTC layout so lexical comparison orders it.
func upAlertTables(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			rule_type TEXT NOT NULL,
			account_id INTEGER REFERENCES accounts(id) ON DELETE CASCADE,
			threshold TEXT NOT NULL DEFAULT '0.00',
			message TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			last_triggered_at TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_rules_user ON alert_rules(user_id, is_active)`,

		`CREATE TABLE IF NOT EXISTS budgets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			amount TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS budget_categories (
			budget_id INTEGER NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			PRIMARY KEY (budget_id, category)
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			rule_id INTEGER REFERENCES alert_rules(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			related_object_id INTEGER,
			related_object_type TEXT NOT NULL DEFAULT '',
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at)`,
	}

	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downAlertTables(ctx context.Context, tx *sql.Tx) error {
	for _, q := range []string{
		`DROP TABLE IF EXISTS notifications`,
		`DROP TABLE IF EXISTS budget_categories`,
		`DROP TABLE IF EXISTS budgets`,
		`DROP TABLE IF EXISTS alert_rules`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
