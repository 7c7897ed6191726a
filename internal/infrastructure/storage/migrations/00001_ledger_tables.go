package migrations

import (
	"context"
	"database/sql"
)

// upLedgerTables creates accounts and transactions. Amounts are TEXT so the
// decimal representation survives SQLite's numeric affinity.
func upLedgerTables(ctx context.Context, tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			account_type TEXT NOT NULL DEFAULT 'bank',
			balance TEXT NOT NULL DEFAULT '0.00',
			currency TEXT NOT NULL DEFAULT 'USD',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			amount TEXT NOT NULL,
			txn_date TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT 'Transaction',
			merchant_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			is_transfer INTEGER NOT NULL DEFAULT 0,
			transfer_match_id INTEGER REFERENCES transactions(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, txn_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(txn_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_transfer ON transactions(is_transfer)`,
	}

	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downLedgerTables(ctx context.Context, tx *sql.Tx) error {
	for _, q := range []string{
		`DROP TABLE IF EXISTS transactions`,
		`DROP TABLE IF EXISTS accounts`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
