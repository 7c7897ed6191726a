package index

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

const userID = int64(1)

type countingSource struct {
	*storage.MockRepository
	calls int
}

func (s *countingSource) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]*ledger.Transaction, error) {
	s.calls++
	return s.MockRepository.ListTransactions(ctx, f)
}

func setup(t *testing.T) (*countingSource, *ledger.Account) {
	repo := storage.NewMockRepository()
	a := &ledger.Account{UserID: userID, Name: "Checking", Type: ledger.AccountBank}
	require.NoError(t, repo.CreateAccount(context.Background(), a))
	return &countingSource{MockRepository: repo}, a
}

func add(t *testing.T, src *countingSource, accountID int64, day int, name, category string) *ledger.Transaction {
	txn := &ledger.Transaction{
		AccountID: accountID,
		Amount:    decimal.NewFromInt(-10),
		Date:      time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Name:      name,
		Category:  category,
	}
	require.NoError(t, src.CreateTransaction(context.Background(), txn))
	return txn
}

func TestSearch_SubstringAndFuzzy(t *testing.T) {
	src, a := setup(t)
	older := add(t, src, a.ID, 1, "Starbucks Coffee", "Dining")
	newer := add(t, src, a.ID, 5, "STARBUCKS #44", "Dining")
	add(t, src, a.ID, 3, "Shell Gas", "Auto")

	x := New(src, time.Minute, nil)
	defer x.Close()

	hits, err := x.Search(context.Background(), userID, "starbucks", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, newer.ID, hits[0].Transaction.ID)
	assert.Equal(t, older.ID, hits[1].Transaction.ID)
	assert.Equal(t, 1.0, hits[0].Score)

	fuzzy, err := x.Search(context.Background(), userID, "starbuks", 0)
	require.NoError(t, err)
	require.Len(t, fuzzy, 2)
	assert.Less(t, fuzzy[0].Score, 1.0)

	byCategory, err := x.Search(context.Background(), userID, "auto", 0)
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "Shell Gas", byCategory[0].Transaction.Name)
}

func TestSearch_BuildsOnceUntilInvalidated(t *testing.T) {
	src, a := setup(t)
	add(t, src, a.ID, 1, "Netflix", "Entertainment")

	x := New(src, time.Minute, nil)
	defer x.Close()

	_, err := x.Search(context.Background(), userID, "netflix", 0)
	require.NoError(t, err)
	_, err = x.Search(context.Background(), userID, "netflix", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	add(t, src, a.ID, 2, "Netflix", "Entertainment")
	x.Invalidate(userID)

	hits, err := x.Search(context.Background(), userID, "netflix", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Len(t, hits, 2)
}

func TestSearch_LimitAndEmptyQuery(t *testing.T) {
	src, a := setup(t)
	for d := 1; d <= 8; d++ {
		add(t, src, a.ID, d, "Metro Transit", "Transport")
	}
	x := New(src, time.Minute, nil)
	defer x.Close()

	hits, err := x.Search(context.Background(), userID, "metro", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultLimit)

	hits, err = x.Search(context.Background(), userID, "metro", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = x.Search(context.Background(), userID, "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestClose(t *testing.T) {
	src, _ := setup(t)
	x := New(src, time.Minute, nil)
	require.NoError(t, x.Close())

	_, err := x.Search(context.Background(), userID, "x", 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, x.Build(context.Background(), userID), ErrClosed)
}

func TestScoreEntry(t *testing.T) {
	e := entry{text: "whole foods market", tokens: []string{"whole", "foods", "market"}}

	assert.Equal(t, 1.0, scoreEntry("foods", []string{"foods"}, e))
	assert.InDelta(t, 0.8, scoreEntry("fods", []string{"fods"}, e), 0.001)
	assert.Equal(t, 0.0, scoreEntry("x", nil, entry{}))
}
