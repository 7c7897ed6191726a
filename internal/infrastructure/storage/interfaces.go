package storage

import (
	"context"
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// Repository defines the complete storage interface.
// Domain packages declare the narrow slices they consume; both Storage and
// MockRepository satisfy all of them.
type Repository interface {
	AccountRepository
	TransactionRepository
	RecurringRepository
	AlertRepository
	Close() error
}

// AccountRepository handles account reads and creation.
type AccountRepository interface {
	// CreateAccount inserts an account with its opening balance and sets its ID.
	CreateAccount(ctx context.Context, account *ledger.Account) error

	// GetAccount returns a *ledger.NotFoundError when the account is missing.
	GetAccount(ctx context.Context, id int64) (*ledger.Account, error)

	ListAccounts(ctx context.Context, userID int64) ([]*ledger.Account, error)

	// ListUserIDs returns every user that owns at least one account.
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// TransactionRepository handles transaction writes and queries.
// Create, update and delete adjust the owning account balance in the same
// SQL transaction.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, txn *ledger.Transaction) error
	UpdateTransaction(ctx context.Context, txn *ledger.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)

	// ClaimTransfer marks a transaction as a transfer without a counterpart.
	// It reports false when the transaction was already a transfer.
	ClaimTransfer(ctx context.Context, id int64) (bool, error)

	// LinkTransfer marks both legs as transfers pointing at each other.
	// It reports false, writing nothing, when either leg is already a
	// transfer.
	LinkTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error)

	// LinkClaimedTransfer links a primary claimed earlier in the same pass.
	// Only the counterpart must not be a transfer yet.
	LinkClaimedTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error)
}

// RecurringRepository handles recurring series and exclusion patterns.
type RecurringRepository interface {
	// ListSeries returns the user's series, optionally restricted to statuses.
	ListSeries(ctx context.Context, userID int64, statuses ...ledger.SeriesStatus) ([]*ledger.RecurringSeries, error)
	GetSeries(ctx context.Context, id int64) (*ledger.RecurringSeries, error)

	// CreateSeries returns ledger.ErrConflict when an active series already
	// exists for the same user and name.
	CreateSeries(ctx context.Context, series *ledger.RecurringSeries) error
	UpdateSeries(ctx context.Context, series *ledger.RecurringSeries) error

	// SetSeriesStatus moves a series from one status to another.
	// It reports false when the series was no longer in the from status.
	SetSeriesStatus(ctx context.Context, id int64, from, to ledger.SeriesStatus) (bool, error)

	ListExclusions(ctx context.Context, userID int64) ([]ledger.ExclusionPattern, error)

	// AddExclusion is idempotent.
	AddExclusion(ctx context.Context, pattern ledger.ExclusionPattern) error
}

// AlertRepository handles alert rules, budgets and notifications.
type AlertRepository interface {
	CreateAlertRule(ctx context.Context, rule *ledger.AlertRule) error
	ListActiveAlertRules(ctx context.Context, userID int64) ([]*ledger.AlertRule, error)

	// ClaimRuleTrigger sets last_triggered_at to now when the rule has never
	// fired or last fired at least cooldown ago. It reports false otherwise.
	ClaimRuleTrigger(ctx context.Context, ruleID int64, now time.Time, cooldown time.Duration) (bool, error)

	CreateBudget(ctx context.Context, budget *ledger.Budget) error
	ListBudgets(ctx context.Context, userID int64) ([]*ledger.Budget, error)

	CreateNotification(ctx context.Context, n *ledger.Notification) error
	ListNotifications(ctx context.Context, userID int64) ([]*ledger.Notification, error)
}
