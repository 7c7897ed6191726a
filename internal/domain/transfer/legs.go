package transfer

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// LegKind tags a candidate transaction by the account it sits on.
type LegKind int

const (
	// LegGeneric is a transaction whose account is missing or of unknown type.
	// It is treated as non-card by the bank-transfer phase.
	LegGeneric LegKind = iota
	// LegCard sits on a credit card account.
	LegCard
	// LegBank sits on any other known account type.
	LegBank
)

func (k LegKind) String() string {
	switch k {
	case LegCard:
		return "card"
	case LegBank:
		return "bank"
	}
	return "generic"
}

// Leg is a validated, non-transfer transaction considered by a pass.
type Leg struct {
	Kind        LegKind
	ID          int64
	AccountID   int64
	AccountName string
	Amount      decimal.Decimal
	Date        time.Time
	Name        string
}

// newLeg validates a transaction and tags it by account type.
func newLeg(txn *ledger.Transaction, accounts map[int64]*ledger.Account) (Leg, error) {
	if txn.Date.IsZero() {
		return Leg{}, &ledger.ValidationError{
			Item:   "transaction " + strconv.FormatInt(txn.ID, 10),
			Field:  "date",
			Reason: "missing date",
		}
	}

	leg := Leg{
		Kind:      LegGeneric,
		ID:        txn.ID,
		AccountID: txn.AccountID,
		Amount:    txn.Amount,
		Date:      ledger.Day(txn.Date),
		Name:      txn.Name,
	}

	if a, ok := accounts[txn.AccountID]; ok {
		leg.AccountName = a.Name
		switch {
		case a.Type == ledger.AccountCreditCard:
			leg.Kind = LegCard
		case a.Type.Valid():
			leg.Kind = LegBank
		}
	}
	return leg, nil
}

func (l Leg) summary() LegSummary {
	return LegSummary{ID: l.ID, Name: l.Name, Amount: l.Amount, Account: l.AccountName}
}

func summarize(txn *ledger.Transaction, accounts map[int64]*ledger.Account, matchType string) *LegSummary {
	s := &LegSummary{ID: txn.ID, Name: txn.Name, Amount: txn.Amount, MatchType: matchType}
	if a, ok := accounts[txn.AccountID]; ok {
		s.Account = a.Name
	}
	return s
}
