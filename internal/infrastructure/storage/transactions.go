package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

const transactionColumns = `t.id, t.account_id, t.amount, t.txn_date, t.name,
	t.merchant_name, t.category, t.is_transfer, t.transfer_match_id`

// CreateTransaction inserts a transaction and adds its amount to the account balance.
func (s *Storage) CreateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}
	normalizeTransaction(txn)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := accountExists(ctx, tx, txn.AccountID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO transactions
			(account_id, amount, txn_date, name, merchant_name, category, is_transfer, transfer_match_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.AccountID, formatAmount(txn.Amount), formatDate(txn.Date), txn.Name,
			txn.MerchantName, txn.Category, boolInt(txn.IsTransfer), nullableInt(txn.TransferMatchID))
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if err := adjustBalance(ctx, tx, txn.AccountID, txn.Amount); err != nil {
			return err
		}
		txn.ID = id
		return nil
	})
}

// UpdateTransaction rewrites a transaction and moves the balance difference.
// Changing the account reverses the old amount on the old account.
func (s *Storage) UpdateTransaction(ctx context.Context, txn *ledger.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}
	normalizeTransaction(txn)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, txn.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return &ledger.NotFoundError{Resource: "transaction", ID: txn.ID}
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction %d: %w", txn.ID, err)
		}

		if txn.AccountID != old.AccountID {
			if err := accountExists(ctx, tx, txn.AccountID); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions SET
				account_id = ?, amount = ?, txn_date = ?, name = ?, merchant_name = ?,
				category = ?, is_transfer = ?, transfer_match_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			txn.AccountID, formatAmount(txn.Amount), formatDate(txn.Date), txn.Name, txn.MerchantName,
			txn.Category, boolInt(txn.IsTransfer), nullableInt(txn.TransferMatchID), txn.ID)
		if err != nil {
			return fmt.Errorf("failed to update transaction %d: %w", txn.ID, err)
		}

		if txn.AccountID == old.AccountID {
			return adjustBalance(ctx, tx, txn.AccountID, txn.Amount.Sub(old.Amount))
		}
		if err := adjustBalance(ctx, tx, old.AccountID, old.Amount.Neg()); err != nil {
			return err
		}
		return adjustBalance(ctx, tx, txn.AccountID, txn.Amount)
	})
}

// DeleteTransaction removes a transaction and reverses its amount.
// A linked counterpart keeps its transfer flag; its match pointer is cleared.
func (s *Storage) DeleteTransaction(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return &ledger.NotFoundError{Resource: "transaction", ID: id}
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction %d: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transaction %d: %w", id, err)
		}
		return adjustBalance(ctx, tx, old.AccountID, old.Amount.Neg())
	})
}

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return txn, nil
}

// ListTransactions returns the user's transactions matching filter.
func (s *Storage) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	query, args := buildTransactionQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []*ledger.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func buildTransactionQuery(f ledger.TransactionFilter) (string, []any) {
	var (
		where = []string{"a.user_id = ?"}
		args  = []any{f.UserID}
	)

	if f.AccountID != nil {
		where = append(where, "t.account_id = ?")
		args = append(args, *f.AccountID)
	}
	if f.DateFrom != nil {
		where = append(where, "t.txn_date >= ?")
		args = append(args, formatDate(*f.DateFrom))
	}
	if f.DateTo != nil {
		where = append(where, "t.txn_date <= ?")
		args = append(args, formatDate(*f.DateTo))
	}
	if f.Amount != nil {
		where = append(where, "t.amount = ?")
		args = append(args, formatAmount(*f.Amount))
	}
	switch f.Sign {
	case ledger.Negative:
		where = append(where, "CAST(t.amount AS REAL) < 0")
	case ledger.Positive:
		where = append(where, "CAST(t.amount AS REAL) > 0")
	}
	if f.IsTransfer != nil {
		where = append(where, "t.is_transfer = ?")
		args = append(args, boolInt(*f.IsTransfer))
	}
	if f.NameContains != "" {
		needle := strings.ToLower(f.NameContains)
		where = append(where, "(instr(LOWER(t.name), ?) > 0 OR instr(LOWER(t.merchant_name), ?) > 0)")
		args = append(args, needle, needle)
	}
	if f.ExcludeAccountType != "" {
		where = append(where, "a.account_type <> ?")
		args = append(args, string(f.ExcludeAccountType))
	}
	if len(f.ExcludeIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.ExcludeIDs)), ",")
		where = append(where, "t.id NOT IN ("+placeholders+")")
		for _, id := range f.ExcludeIDs {
			args = append(args, id)
		}
	}

	order := "t.txn_date ASC, t.id ASC"
	if f.Newest {
		order = "t.txn_date DESC, t.id DESC"
	}

	query := `SELECT ` + transactionColumns + `
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

// ClaimTransfer flags a transaction as a transfer when it is not one already.
func (s *Storage) ClaimTransfer(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET is_transfer = 1, category = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_transfer = 0`,
		ledger.TransferCategory, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim transaction %d: %w", id, err)
	}
	return affectedOne(res)
}

// LinkTransfer links two untouched legs symmetrically in one SQL transaction.
func (s *Storage) LinkTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error) {
	return s.linkTransfer(ctx, primaryID, counterpartID, false)
}

// LinkClaimedTransfer is LinkTransfer for a primary already claimed by
// ClaimTransfer. The counterpart must still be untouched.
func (s *Storage) LinkClaimedTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error) {
	return s.linkTransfer(ctx, primaryID, counterpartID, true)
}

func (s *Storage) linkTransfer(ctx context.Context, primaryID, counterpartID int64, claimedPrimary bool) (bool, error) {
	if primaryID == counterpartID {
		return false, &ledger.ValidationError{Item: "transfer", Field: "counterpart", Value: fmt.Sprint(counterpartID), Reason: "a transaction cannot match itself"}
	}

	primaryGuard := "transfer_match_id IS NULL AND is_transfer = 0"
	if claimedPrimary {
		primaryGuard = "transfer_match_id IS NULL"
	}

	linked := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET is_transfer = 1, category = ?, transfer_match_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND `+primaryGuard,
			ledger.TransferCategory, counterpartID, primaryID)
		if err != nil {
			return fmt.Errorf("failed to link transaction %d: %w", primaryID, err)
		}
		if ok, err := affectedOne(res); err != nil || !ok {
			return errLostClaim(err)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET is_transfer = 1, category = ?, transfer_match_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND is_transfer = 0 AND transfer_match_id IS NULL`,
			ledger.TransferCategory, primaryID, counterpartID)
		if err != nil {
			return fmt.Errorf("failed to link transaction %d: %w", counterpartID, err)
		}
		if ok, err := affectedOne(res); err != nil || !ok {
			return errLostClaim(err)
		}

		linked = true
		return nil
	})
	if errors.Is(err, ledger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return linked, nil
}

// errLostClaim turns a zero-row guarded update into ErrConflict so the
// surrounding transaction rolls back.
func errLostClaim(err error) error {
	if err != nil {
		return err
	}
	return ledger.ErrConflict
}

func scanTransaction(row scanner) (*ledger.Transaction, error) {
	var (
		t        ledger.Transaction
		amount   string
		date     string
		transfer int
		matchID  sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.AccountID, &amount, &date, &t.Name,
		&t.MerchantName, &t.Category, &transfer, &matchID)
	if err != nil {
		return nil, err
	}

	if t.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if t.Date, err = ledger.ParseDay(date); err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	t.IsTransfer = transfer == 1
	t.TransferMatchID = fromNullInt(matchID)
	return &t, nil
}

func accountExists(ctx context.Context, tx *sql.Tx, accountID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = ?`, accountID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return &ledger.NotFoundError{Resource: "account", ID: accountID}
	}
	return err
}

func validateTransaction(txn *ledger.Transaction) error {
	if txn.Date.IsZero() {
		return &ledger.ValidationError{Item: "transaction", Field: "date", Reason: "date is required"}
	}
	return nil
}

// normalizeTransaction applies the storage invariants before a write.
func normalizeTransaction(txn *ledger.Transaction) {
	txn.Date = ledger.Day(txn.Date)
	txn.Amount = txn.Amount.Round(2)
	if txn.IsTransfer {
		txn.Category = ledger.TransferCategory
	}
}
