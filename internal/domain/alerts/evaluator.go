// Package alerts evaluates user threshold rules and emits notifications.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// DefaultCooldown is the minimum gap between two firings of one rule.
const DefaultCooldown = 24 * time.Hour

// Store is the ledger surface the evaluator reads and claims through.
type Store interface {
	ListActiveAlertRules(ctx context.Context, userID int64) ([]*ledger.AlertRule, error)
	ClaimRuleTrigger(ctx context.Context, ruleID int64, now time.Time, cooldown time.Duration) (bool, error)
	GetAccount(ctx context.Context, id int64) (*ledger.Account, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
	ListBudgets(ctx context.Context, userID int64) ([]*ledger.Budget, error)
	ListSeries(ctx context.Context, userID int64, statuses ...ledger.SeriesStatus) ([]*ledger.RecurringSeries, error)
}

// Notifier receives notifications for fired rules.
type Notifier interface {
	CreateNotification(ctx context.Context, n *ledger.Notification) error
}

// Result summarizes one evaluation pass.
type Result struct {
	NotificationsCreated int                    `json:"notifications_created"`
	Notifications        []*ledger.Notification `json:"notifications"`
}

// Evaluator checks a user's active alert rules.
type Evaluator struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	cooldown time.Duration
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(e *Evaluator) { e.cooldown = d }
}

// NewEvaluator creates an evaluator that delivers notifications through
// notifier. A nil logger uses slog.Default().
func NewEvaluator(store Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// trigger is what a rule fired on.
type trigger struct {
	title      string
	message    string
	objectID   int64
	objectType string
}

// check is the per-pass state. Shared lookups are loaded lazily once.
type check struct {
	*Evaluator
	userID int64
	now    time.Time

	budgets      []*ledger.Budget
	monthExpense []*ledger.Transaction
	loadedBudget bool
}

// Check evaluates every active rule for userID. Each rule fires at most once
// per cooldown, and at most once per pass.
func (e *Evaluator) Check(ctx context.Context, userID int64) (*Result, error) {
	rules, err := e.store.ListActiveAlertRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert rules: %w", err)
	}

	c := &check{Evaluator: e, userID: userID, now: e.now().UTC()}
	result := &Result{Notifications: []*ledger.Notification{}}

	for _, rule := range rules {
		if c.coolingDown(rule) {
			continue
		}

		t, err := c.evaluate(ctx, rule)
		if ledger.IsNotFound(err) || ledger.IsValidation(err) {
			e.logger.Warn("skipping alert rule", "rule_id", rule.ID, "type", rule.Type, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}

		claimed, err := e.store.ClaimRuleTrigger(ctx, rule.ID, c.now, e.cooldown)
		if err != nil {
			return nil, fmt.Errorf("failed to claim rule %d: %w", rule.ID, err)
		}
		if !claimed {
			e.logger.Debug("rule fired concurrently", "rule_id", rule.ID)
			continue
		}

		ruleID := rule.ID
		n := &ledger.Notification{
			UserID:            userID,
			RuleID:            &ruleID,
			Title:             t.title,
			Message:           t.message,
			RelatedObjectID:   t.objectID,
			RelatedObjectType: t.objectType,
			CreatedAt:         c.now,
		}
		if rule.Message != "" {
			n.Message = rule.Message
		}
		if err := e.notifier.CreateNotification(ctx, n); err != nil {
			return nil, fmt.Errorf("failed to create notification for rule %d: %w", rule.ID, err)
		}

		result.NotificationsCreated++
		result.Notifications = append(result.Notifications, n)
		e.logger.Info("alert fired",
			"rule_id", rule.ID,
			"type", rule.Type,
			"related", fmt.Sprintf("%s:%d", t.objectType, t.objectID))
	}

	e.logger.Info("alert check complete", "user_id", userID, "rules", len(rules), "notifications", result.NotificationsCreated)
	return result, nil
}

func (c *check) coolingDown(rule *ledger.AlertRule) bool {
	return rule.LastTriggeredAt != nil && c.now.Sub(*rule.LastTriggeredAt) < c.cooldown
}

func (c *check) evaluate(ctx context.Context, rule *ledger.AlertRule) (*trigger, error) {
	switch rule.Type {
	case ledger.RuleLowBalance:
		return c.lowBalance(ctx, rule)
	case ledger.RuleLargeTransaction:
		return c.largeTransaction(ctx, rule)
	case ledger.RuleBudgetExceeded:
		return c.budgetExceeded(ctx, rule)
	case ledger.RuleBillDue:
		return c.billDue(ctx, rule)
	default:
		return nil, &ledger.ValidationError{Item: "alert rule", Field: "type", Value: string(rule.Type), Reason: "unknown rule type"}
	}
}

func (c *check) lowBalance(ctx context.Context, rule *ledger.AlertRule) (*trigger, error) {
	if rule.AccountID == nil {
		return nil, &ledger.ValidationError{Item: "alert rule", Field: "account_id", Reason: "low balance rule has no account"}
	}
	account, err := c.store.GetAccount(ctx, *rule.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != c.userID {
		return nil, &ledger.NotFoundError{Resource: "account", ID: *rule.AccountID}
	}
	if !account.Balance.LessThan(rule.Threshold) {
		return nil, nil
	}
	return &trigger{
		title:      "Low Balance Alert",
		message:    fmt.Sprintf("Balance for %s is below %s", account.Name, dollars(rule.Threshold)),
		objectID:   account.ID,
		objectType: ledger.RelatedAccount,
	}, nil
}

func (c *check) largeTransaction(ctx context.Context, rule *ledger.AlertRule) (*trigger, error) {
	today := ledger.Day(c.now)
	txns, err := c.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:   c.userID,
		DateFrom: ledger.Time(ledger.AddDays(today, -1)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}
	for _, t := range txns {
		if t.Amount.Abs().GreaterThanOrEqual(rule.Threshold) {
			return &trigger{
				title:      "Large Transaction Alert",
				message:    fmt.Sprintf("Large transaction detected: %s for %s", t.DisplayName(), dollars(t.Amount.Abs())),
				objectID:   t.ID,
				objectType: ledger.RelatedTransaction,
			}, nil
		}
	}
	return nil, nil
}

func (c *check) loadBudgets(ctx context.Context) error {
	if c.loadedBudget {
		return nil
	}
	budgets, err := c.store.ListBudgets(ctx, c.userID)
	if err != nil {
		return fmt.Errorf("failed to load budgets: %w", err)
	}
	today := ledger.Day(c.now)
	txns, err := c.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:     c.userID,
		DateFrom:   ledger.Time(ledger.StartOfMonth(today)),
		DateTo:     ledger.Time(today),
		Sign:       ledger.Negative,
		IsTransfer: ledger.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("failed to load month expenses: %w", err)
	}
	c.budgets, c.monthExpense, c.loadedBudget = budgets, txns, true
	return nil
}

// Spent sums the magnitude of expenses in the given categories.
func Spent(txns []*ledger.Transaction, categories []string) decimal.Decimal {
	in := make(map[string]bool, len(categories))
	for _, cat := range categories {
		in[cat] = true
	}
	total := decimal.Zero
	for _, t := range txns {
		if t.Amount.IsNegative() && in[t.Category] {
			total = total.Add(t.Amount.Abs())
		}
	}
	return total
}

// budgetExceeded reports only the first budget over its limit.
func (c *check) budgetExceeded(ctx context.Context, _ *ledger.AlertRule) (*trigger, error) {
	if err := c.loadBudgets(ctx); err != nil {
		return nil, err
	}
	for _, b := range c.budgets {
		spent := Spent(c.monthExpense, b.Categories)
		if spent.GreaterThan(b.Amount) {
			return &trigger{
				title:      "Budget Alert",
				message:    fmt.Sprintf("Budget '%s' exceeded! Spent: %s, Limit: %s", b.Name, dollars(spent), dollars(b.Amount)),
				objectID:   b.ID,
				objectType: ledger.RelatedBudget,
			}, nil
		}
	}
	return nil, nil
}

// billDue treats the threshold as a number of days ahead of today.
func (c *check) billDue(ctx context.Context, rule *ledger.AlertRule) (*trigger, error) {
	series, err := c.store.ListSeries(ctx, c.userID, ledger.SeriesActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	today := ledger.Day(c.now)
	horizon := ledger.AddDays(today, int(rule.Threshold.IntPart()))
	for _, s := range series {
		if s.NextDueDate.IsZero() || s.NextDueDate.Before(today) || s.NextDueDate.After(horizon) {
			continue
		}
		return &trigger{
			title:      "Bill Due Reminder",
			message:    fmt.Sprintf("%s (%s) is due on %s", s.Name, dollars(s.Amount), s.NextDueDate.Format(ledger.DateLayout)),
			objectID:   s.ID,
			objectType: ledger.RelatedSeries,
		}, nil
	}
	return nil, nil
}

func dollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
