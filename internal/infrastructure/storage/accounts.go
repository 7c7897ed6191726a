package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// CreateAccount inserts an account. Balance is taken as the opening balance.
func (s *Storage) CreateAccount(ctx context.Context, account *ledger.Account) error {
	if !account.Type.Valid() {
		return &ledger.ValidationError{Item: "account", Field: "type", Value: string(account.Type), Reason: "unknown account type"}
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, name, account_type, balance, currency)
		VALUES (?, ?, ?, ?, ?)`,
		account.UserID, account.Name, string(account.Type), formatAmount(account.Balance), account.Currency)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = id
	account.Balance = account.Balance.Round(2)
	return nil
}

// GetAccount retrieves an account by ID
func (s *Storage) GetAccount(ctx context.Context, id int64) (*ledger.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, account_type, balance, currency
		FROM accounts WHERE id = ?`, id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return account, nil
}

// ListAccounts returns a user's accounts ordered by ID
func (s *Storage) ListAccounts(ctx context.Context, userID int64) ([]*ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, account_type, balance, currency
		FROM accounts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []*ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// ListUserIDs returns the distinct owners of accounts
func (s *Storage) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var (
		a       ledger.Account
		kind    string
		balance string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &kind, &balance, &a.Currency); err != nil {
		return nil, err
	}
	a.Type = ledger.AccountType(kind)

	b, err := parseAmount(balance)
	if err != nil {
		return nil, err
	}
	a.Balance = b
	return &a, nil
}

// adjustBalance adds delta to an account's balance inside tx.
func adjustBalance(ctx context.Context, tx *sql.Tx, accountID int64, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}

	var current string
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Resource: "account", ID: accountID}
	}
	if err != nil {
		return fmt.Errorf("failed to read balance for account %d: %w", accountID, err)
	}

	balance, err := parseAmount(current)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
		formatAmount(balance.Add(delta)), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %d: %w", accountID, err)
	}
	return nil
}
