// Package ledger holds the shared data model for the reconciliation engine:
// accounts, transactions, recurring series, alert rules and the records the
// detection passes produce.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferCategory is the category every matched transfer leg carries.
const TransferCategory = "Transfer"

// UncategorizedCategory is assigned to transactions confirmed from an import.
const UncategorizedCategory = "Uncategorized"

// AccountType classifies an account for transfer detection.
type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCreditCard AccountType = "credit_card"
	AccountCash       AccountType = "cash"
	AccountOther      AccountType = "other"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCreditCard, AccountCash, AccountOther:
		return true
	}
	return false
}

// Account is a user's bank, card or cash account.
// Balance is maintained by the store as the sum of the account's transactions.
type Account struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Name     string          `json:"name"`
	Type     AccountType     `json:"type"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Transaction is a single ledger entry. Expenses are negative.
type Transaction struct {
	ID              int64           `json:"id"`
	AccountID       int64           `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Name            string          `json:"name"`
	MerchantName    string          `json:"merchant_name,omitempty"`
	Category        string          `json:"category,omitempty"`
	IsTransfer      bool            `json:"is_transfer"`
	TransferMatchID *int64          `json:"transfer_match_id,omitempty"`
}

// DisplayName returns the merchant name when present, otherwise the raw name.
func (t *Transaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// Frequency is the detected cadence of a recurring series.
type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// SeriesStatus is the lifecycle state of a recurring series.
type SeriesStatus string

const (
	SeriesActive       SeriesStatus = "active"
	SeriesOverdue      SeriesStatus = "overdue"
	SeriesDiscontinued SeriesStatus = "discontinued"
	SeriesCancelled    SeriesStatus = "cancelled"
)

// RecurringSeries is a detected (or user-entered) subscription-like charge.
type RecurringSeries struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	Name             string          `json:"name"`
	Amount           decimal.Decimal `json:"amount"`
	Frequency        Frequency       `json:"frequency"`
	NextDueDate      time.Time       `json:"next_due_date"`
	LastSeenDate     time.Time       `json:"last_seen_date"`
	Status           SeriesStatus    `json:"status"`
	DetectedBySystem bool            `json:"detected_by_system"`
	MerchantName     string          `json:"merchant_name,omitempty"`
	Category         string          `json:"category,omitempty"`
}

// ExclusionPattern suppresses re-detection of a series the user deleted.
type ExclusionPattern struct {
	UserID      int64  `json:"user_id"`
	NamePattern string `json:"name_pattern"`
}

// Candidate is a provisional imported row awaiting user confirmation.
type Candidate struct {
	Row         int             `json:"row"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsDuplicate bool            `json:"is_duplicate"`
	DuplicateOf *int64          `json:"duplicate_of,omitempty"`
	Selected    bool            `json:"selected"`
	Similarity  float64         `json:"similarity,omitempty"`
}

// NewCandidate returns a candidate selected for import by default.
func NewCandidate(row int, date time.Time, amount decimal.Decimal, description string) *Candidate {
	return &Candidate{
		Row:         row,
		Date:        Day(date),
		Amount:      amount,
		Description: description,
		Selected:    true,
	}
}

// RuleType identifies what an alert rule watches.
type RuleType string

const (
	RuleLowBalance       RuleType = "low_balance"
	RuleLargeTransaction RuleType = "large_transaction"
	RuleBudgetExceeded   RuleType = "budget_exceeded"
	RuleBillDue          RuleType = "bill_due"
)

// AlertRule is a user-configured threshold rule.
type AlertRule struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Type            RuleType        `json:"type"`
	AccountID       *int64          `json:"account_id,omitempty"`
	Threshold       decimal.Decimal `json:"threshold"`
	Message         string          `json:"message,omitempty"`
	IsActive        bool            `json:"is_active"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
}

// Related object types a notification can point at.
const (
	RelatedAccount     = "Account"
	RelatedTransaction = "Transaction"
	RelatedBudget      = "Budget"
	RelatedSeries      = "RecurringSeries"
)

// Notification is emitted to the user when an alert rule fires.
type Notification struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	RuleID            *int64    `json:"rule_id,omitempty"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	RelatedObjectID   int64     `json:"related_object_id"`
	RelatedObjectType string    `json:"related_object_type"`
	CreatedAt         time.Time `json:"created_at"`
}

// Budget caps monthly spending across a set of categories.
type Budget struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Categories []string        `json:"categories"`
}
