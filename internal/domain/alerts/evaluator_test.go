package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

const userID = int64(1)

var start = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	t       *testing.T
	repo    *storage.MockRepository
	account *ledger.Account
	now     time.Time
}

func newFixture(t *testing.T, balance string) *fixture {
	repo := storage.NewMockRepository()
	a := &ledger.Account{UserID: userID, Name: "Checking", Type: ledger.AccountBank, Balance: amt(balance)}
	require.NoError(t, repo.CreateAccount(context.Background(), a))
	return &fixture{t: t, repo: repo, account: a, now: start}
}

func (f *fixture) evaluator() *Evaluator {
	return NewEvaluator(f.repo, f.repo, nil, WithClock(func() time.Time { return f.now }))
}

func (f *fixture) rule(r *ledger.AlertRule) *ledger.AlertRule {
	r.UserID = userID
	r.IsActive = true
	require.NoError(f.t, f.repo.CreateAlertRule(context.Background(), r))
	return r
}

func (f *fixture) txn(date time.Time, amount, name, category string) *ledger.Transaction {
	txn := &ledger.Transaction{AccountID: f.account.ID, Amount: amt(amount), Date: date, Name: name, Category: category}
	require.NoError(f.t, f.repo.CreateTransaction(context.Background(), txn))
	return txn
}

func (f *fixture) check() *Result {
	res, err := f.evaluator().Check(context.Background(), userID)
	require.NoError(f.t, err)
	return res
}

func TestCheck_LowBalanceCooldown(t *testing.T) {
	f := newFixture(t, "50.00")
	rule := f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("100")})

	first := f.check()
	require.Equal(t, 1, first.NotificationsCreated)
	n := first.Notifications[0]
	assert.Equal(t, "Low Balance Alert", n.Title)
	assert.Equal(t, "Balance for Checking is below $100.00", n.Message)
	assert.Equal(t, ledger.RelatedAccount, n.RelatedObjectType)
	assert.Equal(t, f.account.ID, n.RelatedObjectID)
	require.NotNil(t, n.RuleID)
	assert.Equal(t, rule.ID, *n.RuleID)

	f.now = start.Add(23 * time.Hour)
	assert.Equal(t, 0, f.check().NotificationsCreated)

	f.now = start.Add(24 * time.Hour)
	assert.Equal(t, 1, f.check().NotificationsCreated)

	all, err := f.repo.ListNotifications(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheck_LowBalanceNotBelowThreshold(t *testing.T) {
	f := newFixture(t, "100.00")
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("100")})

	assert.Equal(t, 0, f.check().NotificationsCreated)
}

func TestCheck_CustomMessage(t *testing.T) {
	f := newFixture(t, "5.00")
	f.rule(&ledger.AlertRule{
		Type:      ledger.RuleLowBalance,
		AccountID: &f.account.ID,
		Threshold: amt("10"),
		Message:   "Top up checking",
	})

	res := f.check()
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "Top up checking", res.Notifications[0].Message)
	assert.Equal(t, "Low Balance Alert", res.Notifications[0].Title)
}

func TestCheck_MissingAccountSkipsOnlyThatRule(t *testing.T) {
	f := newFixture(t, "5.00")
	missing := int64(999)
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &missing, Threshold: amt("10")})
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("10")})

	assert.Equal(t, 1, f.check().NotificationsCreated)
}

func TestCheck_LargeTransactionTrailingDay(t *testing.T) {
	f := newFixture(t, "0")
	today := ledger.Day(start)
	f.txn(ledger.AddDays(today, -2), "-900.00", "Old Rent", "")
	f.txn(ledger.AddDays(today, -1), "-20.00", "Lunch", "")
	big := f.txn(today, "600.00", "Paycheck", "")
	f.rule(&ledger.AlertRule{Type: ledger.RuleLargeTransaction, Threshold: amt("500")})

	res := f.check()
	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, "Large Transaction Alert", n.Title)
	assert.Equal(t, "Large transaction detected: Paycheck for $600.00", n.Message)
	assert.Equal(t, big.ID, n.RelatedObjectID)
	assert.Equal(t, ledger.RelatedTransaction, n.RelatedObjectType)
}

func TestCheck_TwoBudgetsExceededFireOnce(t *testing.T) {
	f := newFixture(t, "0")
	today := ledger.Day(start)
	f.txn(ledger.AddDays(today, -3), "-120.00", "Restaurant", "Dining")
	f.txn(ledger.AddDays(today, -2), "-80.00", "Fuel", "Gas")
	f.txn(ledger.AddDays(today, -40), "-500.00", "Last month", "Dining")

	dining := &ledger.Budget{UserID: userID, Name: "Eating out", Amount: amt("100"), Categories: []string{"Dining"}}
	gas := &ledger.Budget{UserID: userID, Name: "Car", Amount: amt("50"), Categories: []string{"Gas"}}
	require.NoError(t, f.repo.CreateBudget(context.Background(), dining))
	require.NoError(t, f.repo.CreateBudget(context.Background(), gas))
	f.rule(&ledger.AlertRule{Type: ledger.RuleBudgetExceeded})

	res := f.check()
	require.Equal(t, 1, res.NotificationsCreated)
	n := res.Notifications[0]
	assert.Equal(t, dining.ID, n.RelatedObjectID)
	assert.Equal(t, ledger.RelatedBudget, n.RelatedObjectType)
	assert.Equal(t, "Budget 'Eating out' exceeded! Spent: $120.00, Limit: $100.00", n.Message)
}

func TestCheck_BudgetIgnoresTransfersAndIncome(t *testing.T) {
	f := newFixture(t, "0")
	today := ledger.Day(start)
	f.txn(today, "-90.00", "Dinner", "Dining")
	f.txn(today, "30.00", "Refund", "Dining")
	transfer := &ledger.Transaction{AccountID: f.account.ID, Amount: amt("-200"), Date: today, Name: "Move", Category: "Dining", IsTransfer: true}
	require.NoError(t, f.repo.CreateTransaction(context.Background(), transfer))

	require.NoError(t, f.repo.CreateBudget(context.Background(),
		&ledger.Budget{UserID: userID, Name: "Eating out", Amount: amt("100"), Categories: []string{"Dining"}}))
	f.rule(&ledger.AlertRule{Type: ledger.RuleBudgetExceeded})

	assert.Equal(t, 0, f.check().NotificationsCreated)
}

func TestCheck_BillDue(t *testing.T) {
	f := newFixture(t, "0")
	today := ledger.Day(start)
	series := &ledger.RecurringSeries{
		UserID:      userID,
		Name:        "NETFLIX.COM",
		Amount:      amt("15.49"),
		Frequency:   ledger.FrequencyMonthly,
		NextDueDate: ledger.AddDays(today, 2),
		Status:      ledger.SeriesActive,
	}
	require.NoError(t, f.repo.CreateSeries(context.Background(), series))
	f.rule(&ledger.AlertRule{Type: ledger.RuleBillDue, Threshold: amt("3")})

	res := f.check()
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, series.ID, res.Notifications[0].RelatedObjectID)
	assert.Equal(t, ledger.RelatedSeries, res.Notifications[0].RelatedObjectType)
	assert.Equal(t, "NETFLIX.COM ($15.49) is due on 2024-05-22", res.Notifications[0].Message)
}

func TestCheck_LostClaimIsBenign(t *testing.T) {
	f := newFixture(t, "5.00")
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("10")})
	f.repo.BeforeWrite = func(op string, id int64) {
		if op != "claim_rule" {
			return
		}
		f.repo.BeforeWrite = nil
		ok, err := f.repo.ClaimRuleTrigger(context.Background(), id, start, DefaultCooldown)
		require.NoError(t, err)
		require.True(t, ok)
	}

	res := f.check()

	assert.Equal(t, 0, res.NotificationsCreated)
	assert.Equal(t, 0, f.repo.CreateNotificationCalls)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) CreateNotification(ctx context.Context, n *ledger.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func TestCheck_DeliversThroughNotifier(t *testing.T) {
	f := newFixture(t, "5.00")
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("10")})

	notifier := new(mockNotifier)
	notifier.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *ledger.Notification) bool {
		return n.UserID == userID && n.RelatedObjectType == ledger.RelatedAccount && n.CreatedAt.Equal(start)
	})).Return(nil).Once()

	e := NewEvaluator(f.repo, notifier, nil, WithClock(func() time.Time { return start }))
	res, err := e.Check(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, 1, res.NotificationsCreated)
	notifier.AssertExpectations(t)
	assert.Equal(t, 0, f.repo.CreateNotificationCalls)
}

func TestCheck_NotifierFailure(t *testing.T) {
	f := newFixture(t, "5.00")
	f.rule(&ledger.AlertRule{Type: ledger.RuleLowBalance, AccountID: &f.account.ID, Threshold: amt("10")})

	notifier := new(mockNotifier)
	notifier.On("CreateNotification", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	e := NewEvaluator(f.repo, notifier, nil, WithClock(func() time.Time { return start }))
	_, err := e.Check(context.Background(), userID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestCheck_StoreFailure(t *testing.T) {
	f := newFixture(t, "5.00")
	f.repo.ListAlertRulesErr = errors.New("db locked")

	_, err := f.evaluator().Check(context.Background(), userID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}

func TestSpent(t *testing.T) {
	txns := []*ledger.Transaction{
		{Amount: amt("-10.50"), Category: "Dining"},
		{Amount: amt("-4.50"), Category: "Dining"},
		{Amount: amt("20.00"), Category: "Dining"},
		{Amount: amt("-99.00"), Category: "Rent"},
	}
	assert.True(t, amt("15").Equal(Spent(txns, []string{"Dining"})))
	assert.True(t, amt("114").Equal(Spent(txns, []string{"Dining", "Rent"})))
	assert.True(t, decimal.Zero.Equal(Spent(txns, nil)))
}
