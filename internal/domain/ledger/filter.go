package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sign restricts a transaction query by the sign of the amount.
type Sign int

const (
	AnySign Sign = iota
	Negative
	Positive
)

// TransactionFilter selects a user's transactions.
// Zero values mean "no constraint". Results are ordered by (date, id)
// ascending unless Newest is set.
type TransactionFilter struct {
	UserID    int64
	AccountID *int64

	// DateFrom and DateTo are inclusive calendar days.
	DateFrom *time.Time
	DateTo   *time.Time

	// Amount matches exactly, to the cent.
	Amount *decimal.Decimal
	Sign   Sign

	IsTransfer *bool

	// NameContains matches name or merchant name, case-insensitive.
	NameContains string

	ExcludeAccountType AccountType
	ExcludeIDs         []int64

	Newest bool
	Limit  int
}

// Bool returns a pointer to b, for optional filter fields.
func Bool(b bool) *bool { return &b }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
