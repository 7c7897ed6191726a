// Package dedup flags imported statement rows that already exist in the
// ledger and commits the rows the user keeps.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// MaxNameLength bounds the transaction name created from a description.
const MaxNameLength = 255

// Store is the ledger surface the deduplicator needs.
type Store interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
	GetAccount(ctx context.Context, id int64) (*ledger.Account, error)
	CreateTransaction(ctx context.Context, txn *ledger.Transaction) error
}

// Config holds the duplicate search window.
type Config struct {
	// WindowDays matches ledger rows dated within ± this many days.
	WindowDays int
	// LedgerWindowDays groups existing ledger rows for FindLedgerDuplicates.
	LedgerWindowDays int
}

// DefaultConfig returns the standard windows.
func DefaultConfig() Config {
	return Config{WindowDays: 3, LedgerWindowDays: 1}
}

// Batch is one imported statement awaiting review.
type Batch struct {
	UserID     int64               `json:"user_id"`
	AccountID  int64               `json:"account_id"`
	Candidates []*ledger.Candidate `json:"candidates"`
}

// Result summarizes a dedup run.
type Result struct {
	Total      int     `json:"total"`
	Duplicates int     `json:"duplicates"`
	Invalid    []error `json:"-"`
}

// ConfirmResult summarizes a commit.
type ConfirmResult struct {
	Created      int                   `json:"created"`
	Transactions []*ledger.Transaction `json:"transactions"`
}

// Deduplicator runs import passes.
type Deduplicator struct {
	store  Store
	config Config
	logger *slog.Logger
}

// New creates a deduplicator. A nil logger uses slog.Default().
func New(store Store, config Config, logger *slog.Logger) *Deduplicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deduplicator{store: store, config: config, logger: logger}
}

// Run flags each candidate that has a ledger row with the exact same amount
// within the date window. The earliest such row is recorded as the original.
// Clean candidates keep their selection. Re-running on an unchanged ledger
// produces the same flags.
func (d *Deduplicator) Run(ctx context.Context, batch *Batch) (*Result, error) {
	result := &Result{}
	if batch == nil {
		return result, nil
	}

	for _, c := range batch.Candidates {
		if c == nil {
			continue
		}
		result.Total++

		if err := validate(c); err != nil {
			result.Invalid = append(result.Invalid, err)
			d.logger.Warn("skipping invalid candidate", "row", c.Row, "error", err)
			continue
		}

		matches, err := d.store.ListTransactions(ctx, ledger.TransactionFilter{
			UserID:   batch.UserID,
			Amount:   &c.Amount,
			DateFrom: ledger.Time(ledger.AddDays(c.Date, -d.config.WindowDays)),
			DateTo:   ledger.Time(ledger.AddDays(c.Date, d.config.WindowDays)),
			Limit:    1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search ledger for row %d: %w", c.Row, err)
		}

		if len(matches) == 0 {
			c.IsDuplicate = false
			c.DuplicateOf = nil
			c.Similarity = 0
			continue
		}

		original := matches[0]
		id := original.ID
		c.IsDuplicate = true
		c.DuplicateOf = &id
		c.Selected = false
		c.Similarity = Similarity(c.Description, original.Name)
		result.Duplicates++
	}

	d.logger.Info("import dedup complete",
		"user_id", batch.UserID,
		"total", result.Total,
		"duplicates", result.Duplicates,
		"invalid", len(result.Invalid))
	return result, nil
}

func validate(c *ledger.Candidate) error {
	if c.Date.IsZero() {
		return &ledger.ValidationError{
			Item:   "row " + strconv.Itoa(c.Row),
			Field:  "date",
			Reason: "missing or unparseable date",
		}
	}
	// Ledger amounts are stored in cents.
	if !c.Amount.Equal(c.Amount.Round(2)) {
		return &ledger.ValidationError{
			Item:   "row " + strconv.Itoa(c.Row),
			Field:  "amount",
			Value:  c.Amount.String(),
			Reason: "more precise than a cent",
		}
	}
	return nil
}

// Similarity is the normalized Levenshtein ratio of two descriptions,
// 1 for identical and 0 for nothing in common. It is informational only.
func Similarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// Confirm creates a ledger transaction for every selected, valid candidate on
// the batch account. Each create adjusts the account balance.
func (d *Deduplicator) Confirm(ctx context.Context, batch *Batch) (*ConfirmResult, error) {
	account, err := d.store.GetAccount(ctx, batch.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != batch.UserID {
		return nil, &ledger.NotFoundError{Resource: "account", ID: batch.AccountID}
	}

	result := &ConfirmResult{Transactions: []*ledger.Transaction{}}
	for _, c := range batch.Candidates {
		if c == nil || !c.Selected || validate(c) != nil {
			continue
		}

		txn := &ledger.Transaction{
			AccountID: account.ID,
			Amount:    c.Amount,
			Date:      c.Date,
			Name:      transactionName(c.Description),
			Category:  ledger.UncategorizedCategory,
		}
		if err := d.store.CreateTransaction(ctx, txn); err != nil {
			return result, fmt.Errorf("failed to import row %d: %w", c.Row, err)
		}
		result.Created++
		result.Transactions = append(result.Transactions, txn)
	}

	d.logger.Info("import confirmed",
		"user_id", batch.UserID,
		"account", account.Name,
		"created", result.Created)
	return result, nil
}

func transactionName(description string) string {
	name := strings.TrimSpace(description)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	if name == "" {
		return "Transaction"
	}
	return name
}

// FindLedgerDuplicates groups existing ledger rows with the same amount
// dated within LedgerWindowDays of the newest row in the group.
func (d *Deduplicator) FindLedgerDuplicates(ctx context.Context, userID int64) ([][]*ledger.Transaction, error) {
	txns, err := d.store.ListTransactions(ctx, ledger.TransactionFilter{UserID: userID, Newest: true})
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	groups := [][]*ledger.Transaction{}
	seen := make(map[int64]bool)
	for i, head := range txns {
		if seen[head.ID] {
			continue
		}
		group := []*ledger.Transaction{head}
		for _, other := range txns[i+1:] {
			if seen[other.ID] || !other.Amount.Equal(head.Amount) {
				continue
			}
			if gap := ledger.DaysBetween(other.Date, head.Date); gap <= d.config.LedgerWindowDays {
				group = append(group, other)
			}
		}
		if len(group) > 1 {
			for _, t := range group {
				seen[t.ID] = true
			}
			groups = append(groups, group)
		}
	}
	return groups, nil
}
