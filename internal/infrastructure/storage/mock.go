package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It mirrors the guarded-write and balance semantics of Storage, so domain
// tests exercise the same race outcomes without a database.
type MockRepository struct {
	mu sync.Mutex

	accounts      map[int64]*ledger.Account
	transactions  map[int64]*ledger.Transaction
	series        map[int64]*ledger.RecurringSeries
	exclusions    []ledger.ExclusionPattern
	rules         map[int64]*ledger.AlertRule
	budgets       map[int64]*ledger.Budget
	notifications []*ledger.Notification
	nextID        int64

	// Hooks for test assertions
	ClaimTransferCalls      int
	LinkTransferCalls       int
	CreateNotificationCalls int

	// BeforeWrite runs ahead of every guarded write, outside the lock.
	// Tests use it to simulate a concurrent pass winning a race.
	BeforeWrite func(op string, id int64)

	// Error injection for testing error paths
	ListTransactionsErr   error
	CreateTransactionErr  error
	ListSeriesErr         error
	CreateNotificationErr error
	ListAlertRulesErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:     make(map[int64]*ledger.Account),
		transactions: make(map[int64]*ledger.Transaction),
		series:       make(map[int64]*ledger.RecurringSeries),
		rules:        make(map[int64]*ledger.AlertRule),
		budgets:      make(map[int64]*ledger.Budget),
		nextID:       1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *MockRepository) beforeWrite(op string, id int64) {
	if m.BeforeWrite != nil {
		m.BeforeWrite(op, id)
	}
}

// ================================================================
// ACCOUNTS
// ================================================================

func (m *MockRepository) CreateAccount(_ context.Context, account *ledger.Account) error {
	if !account.Type.Valid() {
		return &ledger.ValidationError{Item: "account", Field: "type", Value: string(account.Type), Reason: "unknown account type"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if account.Currency == "" {
		account.Currency = "USD"
	}
	account.ID = m.id()
	account.Balance = account.Balance.Round(2)
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *MockRepository) GetAccount(_ context.Context, id int64) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, &ledger.NotFoundError{Resource: "account", ID: id}
	}
	copied := *a
	return &copied, nil
}

func (m *MockRepository) ListAccounts(_ context.Context, userID int64) ([]*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Account
	for _, a := range m.accounts {
		if a.UserID == userID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) ListUserIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int64]bool)
	var ids []int64
	for _, a := range m.accounts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// SetBalance overwrites an account balance directly, bypassing transactions.
func (m *MockRepository) SetBalance(accountID int64, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[accountID]; ok {
		a.Balance = balance
	}
}

// ================================================================
// TRANSACTIONS
// ================================================================

func (m *MockRepository) CreateTransaction(_ context.Context, txn *ledger.Transaction) error {
	if m.CreateTransactionErr != nil {
		return m.CreateTransactionErr
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	normalizeTransaction(txn)

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[txn.AccountID]
	if !ok {
		return &ledger.NotFoundError{Resource: "account", ID: txn.AccountID}
	}
	txn.ID = m.id()
	copied := *txn
	m.transactions[txn.ID] = &copied
	account.Balance = account.Balance.Add(txn.Amount)
	return nil
}

func (m *MockRepository) UpdateTransaction(_ context.Context, txn *ledger.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}
	normalizeTransaction(txn)

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.transactions[txn.ID]
	if !ok {
		return &ledger.NotFoundError{Resource: "transaction", ID: txn.ID}
	}
	newAccount, ok := m.accounts[txn.AccountID]
	if !ok {
		return &ledger.NotFoundError{Resource: "account", ID: txn.AccountID}
	}
	if oldAccount, ok := m.accounts[old.AccountID]; ok {
		oldAccount.Balance = oldAccount.Balance.Sub(old.Amount)
	}
	newAccount.Balance = newAccount.Balance.Add(txn.Amount)

	copied := *txn
	m.transactions[txn.ID] = &copied
	return nil
}

func (m *MockRepository) DeleteTransaction(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.transactions[id]
	if !ok {
		return &ledger.NotFoundError{Resource: "transaction", ID: id}
	}
	if a, ok := m.accounts[old.AccountID]; ok {
		a.Balance = a.Balance.Sub(old.Amount)
	}
	delete(m.transactions, id)
	for _, t := range m.transactions {
		if t.TransferMatchID != nil && *t.TransferMatchID == id {
			t.TransferMatchID = nil
		}
	}
	return nil
}

func (m *MockRepository) GetTransaction(_ context.Context, id int64) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transactions[id]
	if !ok {
		return nil, &ledger.NotFoundError{Resource: "transaction", ID: id}
	}
	return copyTransaction(t), nil
}

func (m *MockRepository) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	if m.ListTransactionsErr != nil {
		return nil, m.ListTransactionsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	excluded := make(map[int64]bool, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		excluded[id] = true
	}

	var out []*ledger.Transaction
	for _, t := range m.transactions {
		a, ok := m.accounts[t.AccountID]
		if !ok || a.UserID != f.UserID {
			continue
		}
		if !matchesFilter(t, a, f, excluded) {
			continue
		}
		out = append(out, copyTransaction(t))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if f.Newest {
			a, b = b, a
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesFilter(t *ledger.Transaction, a *ledger.Account, f ledger.TransactionFilter, excluded map[int64]bool) bool {
	if f.AccountID != nil && t.AccountID != *f.AccountID {
		return false
	}
	if f.DateFrom != nil && t.Date.Before(ledger.Day(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && t.Date.After(ledger.Day(*f.DateTo)) {
		return false
	}
	if f.Amount != nil && !t.Amount.Equal(f.Amount.Round(2)) {
		return false
	}
	switch f.Sign {
	case ledger.Negative:
		if !t.Amount.IsNegative() {
			return false
		}
	case ledger.Positive:
		if !t.Amount.IsPositive() {
			return false
		}
	}
	if f.IsTransfer != nil && t.IsTransfer != *f.IsTransfer {
		return false
	}
	if f.NameContains != "" {
		needle := strings.ToLower(f.NameContains)
		if !strings.Contains(strings.ToLower(t.Name), needle) &&
			!strings.Contains(strings.ToLower(t.MerchantName), needle) {
			return false
		}
	}
	if f.ExcludeAccountType != "" && a.Type == f.ExcludeAccountType {
		return false
	}
	return !excluded[t.ID]
}

func copyTransaction(t *ledger.Transaction) *ledger.Transaction {
	copied := *t
	if t.TransferMatchID != nil {
		v := *t.TransferMatchID
		copied.TransferMatchID = &v
	}
	return &copied
}

func (m *MockRepository) ClaimTransfer(_ context.Context, id int64) (bool, error) {
	m.beforeWrite("claim", id)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClaimTransferCalls++

	t, ok := m.transactions[id]
	if !ok || t.IsTransfer {
		return false, nil
	}
	t.IsTransfer = true
	t.Category = ledger.TransferCategory
	return true, nil
}

func (m *MockRepository) LinkTransfer(_ context.Context, primaryID, counterpartID int64) (bool, error) {
	return m.linkTransfer(primaryID, counterpartID, false)
}

func (m *MockRepository) LinkClaimedTransfer(_ context.Context, primaryID, counterpartID int64) (bool, error) {
	return m.linkTransfer(primaryID, counterpartID, true)
}

func (m *MockRepository) linkTransfer(primaryID, counterpartID int64, claimedPrimary bool) (bool, error) {
	if primaryID == counterpartID {
		return false, &ledger.ValidationError{Item: "transfer", Field: "counterpart", Reason: "a transaction cannot match itself"}
	}
	m.beforeWrite("link", counterpartID)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkTransferCalls++

	p, ok := m.transactions[primaryID]
	if !ok || p.TransferMatchID != nil || (p.IsTransfer && !claimedPrimary) {
		return false, nil
	}
	c, ok := m.transactions[counterpartID]
	if !ok || c.IsTransfer || c.TransferMatchID != nil {
		return false, nil
	}

	p.IsTransfer, c.IsTransfer = true, true
	p.Category, c.Category = ledger.TransferCategory, ledger.TransferCategory
	pid, cid := primaryID, counterpartID
	p.TransferMatchID = &cid
	c.TransferMatchID = &pid
	return true, nil
}

// ================================================================
// RECURRING
// ================================================================

func (m *MockRepository) ListSeries(_ context.Context, userID int64, statuses ...ledger.SeriesStatus) ([]*ledger.RecurringSeries, error) {
	if m.ListSeriesErr != nil {
		return nil, m.ListSeriesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.RecurringSeries
	for _, s := range m.series {
		if s.UserID != userID || !statusIn(s.Status, statuses) {
			continue
		}
		copied := *s
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func statusIn(st ledger.SeriesStatus, set []ledger.SeriesStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

func (m *MockRepository) GetSeries(_ context.Context, id int64) (*ledger.RecurringSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[id]
	if !ok {
		return nil, &ledger.NotFoundError{Resource: "recurring series", ID: id}
	}
	copied := *s
	return &copied, nil
}

// activeConflict reports whether another active series holds the same name key.
func (m *MockRepository) activeConflict(series *ledger.RecurringSeries) bool {
	if series.Status != ledger.SeriesActive {
		return false
	}
	key := nameKey(series.Name)
	for _, s := range m.series {
		if s.ID != series.ID && s.UserID == series.UserID &&
			s.Status == ledger.SeriesActive && nameKey(s.Name) == key {
			return true
		}
	}
	return false
}

func (m *MockRepository) CreateSeries(_ context.Context, series *ledger.RecurringSeries) error {
	m.beforeWrite("create_series", 0)

	m.mu.Lock()
	defer m.mu.Unlock()

	if series.Status == "" {
		series.Status = ledger.SeriesActive
	}
	if m.activeConflict(series) {
		return ledger.ErrConflict
	}
	series.Amount = series.Amount.Round(2)
	series.ID = m.id()
	copied := *series
	m.series[series.ID] = &copied
	return nil
}

func (m *MockRepository) UpdateSeries(_ context.Context, series *ledger.RecurringSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.series[series.ID]
	if !ok {
		return &ledger.NotFoundError{Resource: "recurring series", ID: series.ID}
	}
	series.UserID = existing.UserID
	if m.activeConflict(series) {
		return ledger.ErrConflict
	}
	series.Amount = series.Amount.Round(2)
	copied := *series
	m.series[series.ID] = &copied
	return nil
}

func (m *MockRepository) SetSeriesStatus(_ context.Context, id int64, from, to ledger.SeriesStatus) (bool, error) {
	m.beforeWrite("series_status", id)

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[id]
	if !ok || s.Status != from {
		return false, nil
	}
	candidate := *s
	candidate.Status = to
	if m.activeConflict(&candidate) {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (m *MockRepository) ListExclusions(_ context.Context, userID int64) ([]ledger.ExclusionPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ledger.ExclusionPattern
	for _, p := range m.exclusions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockRepository) AddExclusion(_ context.Context, pattern ledger.ExclusionPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.exclusions {
		if p == pattern {
			return nil
		}
	}
	m.exclusions = append(m.exclusions, pattern)
	return nil
}

// ================================================================
// ALERTS
// ================================================================

func (m *MockRepository) CreateAlertRule(_ context.Context, rule *ledger.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule.ID = m.id()
	copied := *rule
	m.rules[rule.ID] = &copied
	return nil
}

func (m *MockRepository) ListActiveAlertRules(_ context.Context, userID int64) ([]*ledger.AlertRule, error) {
	if m.ListAlertRulesErr != nil {
		return nil, m.ListAlertRulesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.AlertRule
	for _, r := range m.rules {
		if r.UserID == userID && r.IsActive {
			copied := *r
			if r.LastTriggeredAt != nil {
				ts := *r.LastTriggeredAt
				copied.LastTriggeredAt = &ts
			}
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) ClaimRuleTrigger(_ context.Context, ruleID int64, now time.Time, cooldown time.Duration) (bool, error) {
	m.beforeWrite("claim_rule", ruleID)

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok {
		return false, nil
	}
	if r.LastTriggeredAt != nil && now.Sub(*r.LastTriggeredAt) < cooldown {
		return false, nil
	}
	ts := now
	r.LastTriggeredAt = &ts
	return true, nil
}

func (m *MockRepository) CreateBudget(_ context.Context, budget *ledger.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget.ID = m.id()
	copied := *budget
	copied.Categories = append([]string(nil), budget.Categories...)
	m.budgets[budget.ID] = &copied
	return nil
}

func (m *MockRepository) ListBudgets(_ context.Context, userID int64) ([]*ledger.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Budget
	for _, b := range m.budgets {
		if b.UserID == userID {
			copied := *b
			copied.Categories = append([]string(nil), b.Categories...)
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) CreateNotification(_ context.Context, n *ledger.Notification) error {
	if m.CreateNotificationErr != nil {
		return m.CreateNotificationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateNotificationCalls++

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.ID = m.id()
	copied := *n
	m.notifications = append(m.notifications, &copied)
	return nil
}

func (m *MockRepository) ListNotifications(_ context.Context, userID int64) ([]*ledger.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ledger.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}
