package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// CreateAlertRule inserts a rule and sets its ID
func (s *Storage) CreateAlertRule(ctx context.Context, rule *ledger.AlertRule) error {
	var lastTriggered any
	if rule.LastTriggeredAt != nil {
		lastTriggered = formatTimestamp(*rule.LastTriggeredAt)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules (user_id, rule_type, account_id, threshold, message, is_active, last_triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, string(rule.Type), nullableInt(rule.AccountID), formatAmount(rule.Threshold),
		rule.Message, boolInt(rule.IsActive), lastTriggered)
	if err != nil {
		return fmt.Errorf("failed to create alert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rule.ID = id
	return nil
}

// ListActiveAlertRules returns the user's active rules ordered by ID
func (s *Storage) ListActiveAlertRules(ctx context.Context, userID int64) ([]*ledger.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, rule_type, account_id, threshold, message, is_active, last_triggered_at
		FROM alert_rules WHERE user_id = ? AND is_active = 1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []*ledger.AlertRule
	for rows.Next() {
		var (
			r         ledger.AlertRule
			kind      string
			accountID sql.NullInt64
			threshold string
			active    int
			last      sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &kind, &accountID, &threshold, &r.Message, &active, &last); err != nil {
			return nil, err
		}
		r.Type = ledger.RuleType(kind)
		r.AccountID = fromNullInt(accountID)
		r.IsActive = active == 1
		if r.Threshold, err = parseAmount(threshold); err != nil {
			return nil, err
		}
		if last.Valid {
			ts, err := parseTimestamp(last.String)
			if err != nil {
				return nil, fmt.Errorf("invalid last_triggered_at on rule %d: %w", r.ID, err)
			}
			r.LastTriggeredAt = &ts
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// ClaimRuleTrigger stamps last_triggered_at only when the cooldown has elapsed.
// Losing writers see zero rows affected.
func (s *Storage) ClaimRuleTrigger(ctx context.Context, ruleID int64, now time.Time, cooldown time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE alert_rules SET last_triggered_at = ?
		WHERE id = ? AND (last_triggered_at IS NULL OR last_triggered_at <= ?)`,
		formatTimestamp(now), ruleID, formatTimestamp(now.Add(-cooldown)))
	if err != nil {
		return false, fmt.Errorf("failed to claim trigger on rule %d: %w", ruleID, err)
	}
	return affectedOne(res)
}

// CreateBudget inserts a budget with its category set.
func (s *Storage) CreateBudget(ctx context.Context, budget *ledger.Budget) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (user_id, name, amount) VALUES (?, ?, ?)`,
			budget.UserID, budget.Name, formatAmount(budget.Amount))
		if err != nil {
			return fmt.Errorf("failed to create budget: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		for _, c := range budget.Categories {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO budget_categories (budget_id, category) VALUES (?, ?)`, id, c)
			if err != nil {
				return fmt.Errorf("failed to add budget category: %w", err)
			}
		}
		budget.ID = id
		return nil
	})
}

// ListBudgets returns the user's budgets ordered by ID
func (s *Storage) ListBudgets(ctx context.Context, userID int64) ([]*ledger.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.name, b.amount, bc.category
		FROM budgets b LEFT JOIN budget_categories bc ON bc.budget_id = b.id
		WHERE b.user_id = ?
		ORDER BY b.id, bc.category`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		budgets []*ledger.Budget
		current *ledger.Budget
	)
	for rows.Next() {
		var (
			id       int64
			uid      int64
			name     string
			amount   string
			category sql.NullString
		)
		if err := rows.Scan(&id, &uid, &name, &amount, &category); err != nil {
			return nil, err
		}
		if current == nil || current.ID != id {
			a, err := parseAmount(amount)
			if err != nil {
				return nil, err
			}
			current = &ledger.Budget{ID: id, UserID: uid, Name: name, Amount: a}
			budgets = append(budgets, current)
		}
		if category.Valid {
			current.Categories = append(current.Categories, category.String)
		}
	}
	return budgets, rows.Err()
}

// CreateNotification inserts a notification and sets its ID
func (s *Storage) CreateNotification(ctx context.Context, n *ledger.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
		(user_id, rule_id, title, message, related_object_id, related_object_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, nullableInt(n.RuleID), n.Title, n.Message, n.RelatedObjectID,
		n.RelatedObjectType, formatTimestamp(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// ListNotifications returns the user's notifications oldest first
func (s *Storage) ListNotifications(ctx context.Context, userID int64) ([]*ledger.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, rule_id, title, message, related_object_id, related_object_type, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ledger.Notification
	for rows.Next() {
		var (
			n       ledger.Notification
			ruleID  sql.NullInt64
			related sql.NullInt64
			created string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &ruleID, &n.Title, &n.Message, &related, &n.RelatedObjectType, &created); err != nil {
			return nil, err
		}
		n.RuleID = fromNullInt(ruleID)
		n.RelatedObjectID = related.Int64
		ts, err := parseTimestamp(created)
		if err != nil {
			return nil, err
		}
		n.CreatedAt = ts
		out = append(out, &n)
	}
	return out, rows.Err()
}
