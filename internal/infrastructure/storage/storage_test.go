package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// forEachRepository runs fn against SQLite and the in-memory mock so both
// implementations are held to the same behaviour.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) {
		tmpDB := createTempDB(t)
		defer os.Remove(tmpDB)

		store, err := NewStorage(tmpDB)
		require.NoError(t, err)
		defer store.Close()

		fn(t, store)
	})
	t.Run("mock", func(t *testing.T) {
		fn(t, NewMockRepository())
	})
}

func day(s string) time.Time {
	d, err := ledger.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, repo Repository, userID int64, kind ledger.AccountType) *ledger.Account {
	t.Helper()
	a := &ledger.Account{UserID: userID, Name: string(kind), Type: kind}
	require.NoError(t, repo.CreateAccount(context.Background(), a))
	return a
}

func seedTxn(t *testing.T, repo Repository, accountID int64, amount, date, name string) *ledger.Transaction {
	t.Helper()
	txn := &ledger.Transaction{AccountID: accountID, Amount: amt(amount), Date: day(date), Name: name}
	require.NoError(t, repo.CreateTransaction(context.Background(), txn))
	return txn
}

func balance(t *testing.T, repo Repository, accountID int64) decimal.Decimal {
	t.Helper()
	a, err := repo.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return a.Balance
}

func TestStorage_BalanceMaintenance(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		checking := seedAccount(t, repo, 1, ledger.AccountBank)
		savings := seedAccount(t, repo, 1, ledger.AccountBank)

		// Create adds
		txn := seedTxn(t, repo, checking.ID, "-25.50", "2024-03-01", "Coffee")
		seedTxn(t, repo, checking.ID, "100.00", "2024-03-02", "Paycheck")
		assert.True(t, amt("74.50").Equal(balance(t, repo, checking.ID)))

		// Update applies the delta
		txn.Amount = amt("-30.00")
		require.NoError(t, repo.UpdateTransaction(ctx, txn))
		assert.True(t, amt("70.00").Equal(balance(t, repo, checking.ID)))

		// Moving accounts reverses on the old account
		txn.AccountID = savings.ID
		require.NoError(t, repo.UpdateTransaction(ctx, txn))
		assert.True(t, amt("100.00").Equal(balance(t, repo, checking.ID)))
		assert.True(t, amt("-30.00").Equal(balance(t, repo, savings.ID)))

		// Delete subtracts
		require.NoError(t, repo.DeleteTransaction(ctx, txn.ID))
		assert.True(t, balance(t, repo, savings.ID).IsZero())

		_, err := repo.GetTransaction(ctx, txn.ID)
		assert.True(t, ledger.IsNotFound(err))
	})
}

func TestStorage_CreateTransaction_MissingAccount(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		err := repo.CreateTransaction(context.Background(), &ledger.Transaction{
			AccountID: 404, Amount: amt("-1.00"), Date: day("2024-01-01"), Name: "x",
		})
		require.Error(t, err)
		assert.True(t, ledger.IsNotFound(err))
	})
}

func TestStorage_CreateTransaction_RequiresDate(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		a := seedAccount(t, repo, 1, ledger.AccountBank)
		err := repo.CreateTransaction(context.Background(), &ledger.Transaction{AccountID: a.ID, Amount: amt("-1.00")})
		assert.True(t, ledger.IsValidation(err))
	})
}

func TestStorage_ListTransactions_Filters(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		bank := seedAccount(t, repo, 1, ledger.AccountBank)
		card := seedAccount(t, repo, 1, ledger.AccountCreditCard)
		other := seedAccount(t, repo, 2, ledger.AccountBank)

		t1 := seedTxn(t, repo, bank.ID, "-50.00", "2024-03-01", "NETFLIX.COM")
		t2 := seedTxn(t, repo, card.ID, "50.00", "2024-03-03", "Payment Thank You")
		t3 := seedTxn(t, repo, bank.ID, "-12.00", "2024-03-03", "Lunch")
		seedTxn(t, repo, other.ID, "-50.00", "2024-03-01", "Someone else")

		ids := func(txns []*ledger.Transaction) []int64 {
			var out []int64
			for _, tx := range txns {
				out = append(out, tx.ID)
			}
			return out
		}

		all, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID, t2.ID, t3.ID}, ids(all), "ordered by date then id")

		newest, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: 1, Newest: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{t3.ID, t2.ID}, ids(newest))

		fifty := amt("-50")
		exact, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: 1, Amount: &fifty})
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID}, ids(exact))

		negatives, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: 1, Sign: ledger.Negative})
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID, t3.ID}, ids(negatives))

		window, err := repo.ListTransactions(ctx, ledger.TransactionFilter{
			UserID:   1,
			DateFrom: ledger.Time(day("2024-03-02")),
			DateTo:   ledger.Time(day("2024-03-03")),
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{t2.ID, t3.ID}, ids(window))

		named, err := repo.ListTransactions(ctx, ledger.TransactionFilter{UserID: 1, NameContains: "netflix"})
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID}, ids(named))

		noCards, err := repo.ListTransactions(ctx, ledger.TransactionFilter{
			UserID:             1,
			ExcludeAccountType: ledger.AccountCreditCard,
			ExcludeIDs:         []int64{t3.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{t1.ID}, ids(noCards))
	})
}

func TestStorage_ClaimTransfer_Guarded(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		a := seedAccount(t, repo, 1, ledger.AccountBank)
		txn := seedTxn(t, repo, a.ID, "-100.00", "2024-03-01", "Online Transfer to Savings")

		ok, err := repo.ClaimTransfer(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ClaimTransfer(ctx, txn.ID)
		require.NoError(t, err)
		assert.False(t, ok, "second claim loses")

		got, err := repo.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.True(t, got.IsTransfer)
		assert.Equal(t, ledger.TransferCategory, got.Category)
		assert.Nil(t, got.TransferMatchID)
	})
}

func TestStorage_LinkTransfer_Symmetric(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		bank := seedAccount(t, repo, 1, ledger.AccountBank)
		card := seedAccount(t, repo, 1, ledger.AccountCreditCard)
		out := seedTxn(t, repo, bank.ID, "-50.00", "2024-03-01", "Transfer")
		in := seedTxn(t, repo, card.ID, "50.00", "2024-03-03", "Payment")
		third := seedTxn(t, repo, bank.ID, "-50.00", "2024-03-02", "Another")

		// Primary may already be claimed
		_, err := repo.ClaimTransfer(ctx, in.ID)
		require.NoError(t, err)

		ok, err := repo.LinkClaimedTransfer(ctx, in.ID, out.ID)
		require.NoError(t, err)
		require.True(t, ok)

		gotIn, err := repo.GetTransaction(ctx, in.ID)
		require.NoError(t, err)
		gotOut, err := repo.GetTransaction(ctx, out.ID)
		require.NoError(t, err)

		require.NotNil(t, gotIn.TransferMatchID)
		require.NotNil(t, gotOut.TransferMatchID)
		assert.Equal(t, out.ID, *gotIn.TransferMatchID)
		assert.Equal(t, in.ID, *gotOut.TransferMatchID)
		assert.True(t, gotOut.IsTransfer)
		assert.Equal(t, ledger.TransferCategory, gotOut.Category)

		// Already-linked legs cannot be relinked and nothing is written
		ok, err = repo.LinkTransfer(ctx, third.ID, out.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		gotThird, err := repo.GetTransaction(ctx, third.ID)
		require.NoError(t, err)
		assert.False(t, gotThird.IsTransfer, "lost link must roll back the primary")
		assert.Nil(t, gotThird.TransferMatchID)
	})
}

func TestStorage_LinkTransfer_RejectsClaimedPrimary(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		a := seedAccount(t, repo, 1, ledger.AccountBank)
		b := seedAccount(t, repo, 1, ledger.AccountBank)
		claimed := seedTxn(t, repo, a.ID, "-40.00", "2024-03-01", "Transfer to Savings")
		other := seedTxn(t, repo, b.ID, "40.00", "2024-03-02", "Deposit")

		ok, err := repo.ClaimTransfer(ctx, claimed.ID)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = repo.LinkTransfer(ctx, claimed.ID, other.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		gotClaimed, err := repo.GetTransaction(ctx, claimed.ID)
		require.NoError(t, err)
		assert.Nil(t, gotClaimed.TransferMatchID)

		gotOther, err := repo.GetTransaction(ctx, other.ID)
		require.NoError(t, err)
		assert.False(t, gotOther.IsTransfer)
		assert.Nil(t, gotOther.TransferMatchID)
	})
}

func TestStorage_LinkTransfer_Self(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		a := seedAccount(t, repo, 1, ledger.AccountBank)
		txn := seedTxn(t, repo, a.ID, "-5.00", "2024-03-01", "x")

		_, err := repo.LinkTransfer(context.Background(), txn.ID, txn.ID)
		assert.True(t, ledger.IsValidation(err))
	})
}

func TestStorage_Series_OneActivePerName(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		first := &ledger.RecurringSeries{
			UserID: 1, Name: "Netflix", Amount: amt("15.99"), Frequency: ledger.FrequencyMonthly,
			LastSeenDate: day("2024-03-01"), NextDueDate: day("2024-03-31"), DetectedBySystem: true,
		}
		require.NoError(t, repo.CreateSeries(ctx, first))
		assert.Equal(t, ledger.SeriesActive, first.Status)

		dup := &ledger.RecurringSeries{UserID: 1, Name: "netflix ", Frequency: ledger.FrequencyMonthly}
		assert.ErrorIs(t, repo.CreateSeries(ctx, dup), ledger.ErrConflict)

		// A different user is independent
		require.NoError(t, repo.CreateSeries(ctx, &ledger.RecurringSeries{UserID: 2, Name: "Netflix", Frequency: ledger.FrequencyMonthly}))

		ok, err := repo.SetSeriesStatus(ctx, first.ID, ledger.SeriesActive, ledger.SeriesDiscontinued)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.SetSeriesStatus(ctx, first.ID, ledger.SeriesActive, ledger.SeriesDiscontinued)
		require.NoError(t, err)
		assert.False(t, ok, "status already moved")

		// With the first retired, a new active series is allowed
		require.NoError(t, repo.CreateSeries(ctx, dup))

		active, err := repo.ListSeries(ctx, 1, ledger.SeriesActive)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, dup.ID, active[0].ID)

		all, err := repo.ListSeries(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		got, err := repo.GetSeries(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.SeriesDiscontinued, got.Status)
		assert.True(t, got.LastSeenDate.Equal(day("2024-03-01")))
		assert.True(t, amt("15.99").Equal(got.Amount))
	})
}

func TestStorage_Exclusions_Idempotent(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		p := ledger.ExclusionPattern{UserID: 1, NamePattern: "Spotify"}
		require.NoError(t, repo.AddExclusion(ctx, p))
		require.NoError(t, repo.AddExclusion(ctx, p))

		got, err := repo.ListExclusions(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []ledger.ExclusionPattern{p}, got)
	})
}

func TestStorage_ClaimRuleTrigger_Cooldown(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		rule := &ledger.AlertRule{UserID: 1, Type: ledger.RuleLowBalance, Threshold: amt("100"), IsActive: true}
		require.NoError(t, repo.CreateAlertRule(ctx, rule))

		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		cooldown := 24 * time.Hour

		ok, err := repo.ClaimRuleTrigger(ctx, rule.ID, now, cooldown)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ClaimRuleTrigger(ctx, rule.ID, now.Add(23*time.Hour), cooldown)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.ClaimRuleTrigger(ctx, rule.ID, now.Add(24*time.Hour), cooldown)
		require.NoError(t, err)
		assert.True(t, ok)

		rules, err := repo.ListActiveAlertRules(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rules, 1)
		require.NotNil(t, rules[0].LastTriggeredAt)
		assert.True(t, now.Add(24*time.Hour).Equal(*rules[0].LastTriggeredAt))
	})
}

func TestStorage_BudgetsAndNotifications(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		b := &ledger.Budget{UserID: 1, Name: "Food", Amount: amt("300"), Categories: []string{"Dining", "Groceries"}}
		require.NoError(t, repo.CreateBudget(ctx, b))
		require.NoError(t, repo.CreateBudget(ctx, &ledger.Budget{UserID: 1, Name: "Empty", Amount: amt("10")}))

		budgets, err := repo.ListBudgets(ctx, 1)
		require.NoError(t, err)
		require.Len(t, budgets, 2)
		assert.Equal(t, "Food", budgets[0].Name)
		assert.ElementsMatch(t, []string{"Dining", "Groceries"}, budgets[0].Categories)
		assert.Empty(t, budgets[1].Categories)

		n := &ledger.Notification{
			UserID: 1, Title: "Budget Alert", Message: "over",
			RelatedObjectID: b.ID, RelatedObjectType: ledger.RelatedBudget,
		}
		require.NoError(t, repo.CreateNotification(ctx, n))
		assert.NotZero(t, n.ID)

		got, err := repo.ListNotifications(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Budget Alert", got[0].Title)
		assert.Equal(t, b.ID, got[0].RelatedObjectID)
	})
}

func TestStorage_ListUserIDs(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		seedAccount(t, repo, 7, ledger.AccountBank)
		seedAccount(t, repo, 3, ledger.AccountCash)
		seedAccount(t, repo, 7, ledger.AccountCreditCard)

		ids, err := repo.ListUserIDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 7}, ids)
	})
}
