// Package transfer detects internal transfers across a user's accounts so
// they can be excluded from spending analytics.
//
// A pass runs three phases over the user's non-transfer transactions,
// sharing one Claims set:
//
//  1. Card payments: a positive credit card transaction named like a payment
//     is claimed, then linked to the bank-side outflow when one is found.
//  2. Bank transfers: a negative non-card transaction named like an
//     outgoing transfer is claimed on its own.
//  3. Exact amount: any remaining transaction is linked to an exact
//     negation within a few days.
//
// Every write is guarded by the store; a leg taken by a concurrent pass is
// skipped, never an error.
package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// Store is the ledger surface the matcher needs.
type Store interface {
	ListAccounts(ctx context.Context, userID int64) ([]*ledger.Account, error)
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*ledger.Transaction, error)
	ClaimTransfer(ctx context.Context, id int64) (bool, error)
	LinkTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error)
	LinkClaimedTransfer(ctx context.Context, primaryID, counterpartID int64) (bool, error)
}

// Matcher runs transfer detection passes.
type Matcher struct {
	store  Store
	config Config
	logger *slog.Logger
}

// NewMatcher creates a matcher. A nil logger uses slog.Default().
func NewMatcher(store Store, config Config, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{store: store, config: config, logger: logger}
}

// pass carries the state of one Run.
type pass struct {
	*Matcher
	userID   int64
	accounts map[int64]*ledger.Account
	claims   Claims
	result   *Result
}

// Run detects transfers for one user.
func (m *Matcher) Run(ctx context.Context, userID int64) (*Result, error) {
	accounts, err := m.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	txns, err := m.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:     userID,
		IsTransfer: ledger.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	p := &pass{
		Matcher:  m,
		userID:   userID,
		accounts: make(map[int64]*ledger.Account, len(accounts)),
		claims:   make(Claims),
		result:   &Result{Matches: []Match{}},
	}
	for _, a := range accounts {
		p.accounts[a.ID] = a
	}

	legs := make([]Leg, 0, len(txns))
	for _, txn := range txns {
		leg, err := newLeg(txn, p.accounts)
		if err != nil {
			m.logger.Warn("skipping invalid transaction", "error", err)
			continue
		}
		legs = append(legs, leg)
	}

	if err := p.cardPayments(ctx, legs); err != nil {
		return nil, err
	}
	if err := p.bankTransfers(ctx, legs); err != nil {
		return nil, err
	}
	if err := p.exactMatches(ctx, legs); err != nil {
		return nil, err
	}

	m.logger.Info("transfer detection complete",
		"user_id", userID,
		"candidates", len(legs),
		"matches", p.result.MatchCount)
	return p.result, nil
}

// refetch reloads a leg and reports whether it is still unclaimed.
// A transaction deleted since the scan is treated as gone.
func (p *pass) refetch(ctx context.Context, id int64) (*ledger.Transaction, bool, error) {
	txn, err := p.store.GetTransaction(ctx, id)
	if ledger.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload transaction %d: %w", id, err)
	}
	return txn, !txn.IsTransfer, nil
}

// claim re-checks and flags id as a transfer. It always marks id as seen.
func (p *pass) claim(ctx context.Context, id int64) (bool, error) {
	p.claims.Add(id)

	_, open, err := p.refetch(ctx, id)
	if err != nil || !open {
		return false, err
	}

	ok, err := p.store.ClaimTransfer(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim transaction %d: %w", id, err)
	}
	if !ok {
		p.logger.Debug("transaction claimed concurrently", "transaction_id", id)
	}
	return ok, nil
}

func (p *pass) cardPayments(ctx context.Context, legs []Leg) error {
	for _, leg := range legs {
		if leg.Kind != LegCard || p.claims.Has(leg.ID) {
			continue
		}
		if !leg.Amount.IsPositive() || !IsCardPayment(leg.Name) {
			continue
		}

		ok, err := p.claim(ctx, leg.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		dest, err := p.linkBankSide(ctx, leg)
		if err != nil {
			return err
		}

		p.result.add(Match{
			Kind:            KindCardPayment,
			Source:          leg.summary(),
			Destination:     dest,
			Date:            leg.Date,
			DetectionMethod: MethodNamePattern,
		})
		p.logger.Info("card payment detected",
			"transaction_id", leg.ID,
			"amount", leg.Amount.String(),
			"linked", dest != nil)
	}
	return nil
}

// linkBankSide finds and links the outflow that paid a card. An exact
// negation wins; otherwise the first payment-named leg within tolerance.
func (p *pass) linkBankSide(ctx context.Context, card Leg) (*LegSummary, error) {
	candidates, err := p.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:             p.userID,
		IsTransfer:         ledger.Bool(false),
		DateFrom:           ledger.Time(ledger.AddDays(card.Date, -p.config.CardLookbackDays)),
		DateTo:             ledger.Time(ledger.AddDays(card.Date, p.config.CardLookaheadDays)),
		ExcludeAccountType: ledger.AccountCreditCard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search bank side of %d: %w", card.ID, err)
	}

	target := card.Amount.Neg()
	tolerance := card.Amount.Abs().Mul(p.config.FuzzyTolerance)

	var open []*ledger.Transaction
	for _, c := range candidates {
		if !p.claims.Has(c.ID) {
			open = append(open, c)
		}
	}

	for _, c := range open {
		if !c.Amount.Equal(target) {
			continue
		}
		linked, err := p.link(ctx, card.ID, c.ID, true)
		if err != nil {
			return nil, err
		}
		if linked {
			return summarize(c, p.accounts, MethodExactAmount), nil
		}
	}

	for _, c := range open {
		if !looksLikePayment(c.Name) || !withinTolerance(c.Amount, card.Amount, tolerance) {
			continue
		}
		linked, err := p.link(ctx, card.ID, c.ID, true)
		if err != nil {
			return nil, err
		}
		if linked {
			return summarize(c, p.accounts, MethodFuzzyAmountName), nil
		}
	}
	return nil, nil
}

// link pairs two legs and claims both on success. claimedPrimary is set
// when this pass already flagged the primary itself.
func (p *pass) link(ctx context.Context, primaryID, counterpartID int64, claimedPrimary bool) (bool, error) {
	linkFn := p.store.LinkTransfer
	if claimedPrimary {
		linkFn = p.store.LinkClaimedTransfer
	}
	ok, err := linkFn(ctx, primaryID, counterpartID)
	if err != nil {
		return false, fmt.Errorf("failed to link %d and %d: %w", primaryID, counterpartID, err)
	}
	if ok {
		p.claims.Add(primaryID, counterpartID)
	} else {
		p.logger.Debug("link lost to concurrent pass",
			"transaction_id", primaryID,
			"counterpart_id", counterpartID)
	}
	return ok, nil
}

func (p *pass) bankTransfers(ctx context.Context, legs []Leg) error {
	for _, leg := range legs {
		if leg.Kind == LegCard || p.claims.Has(leg.ID) {
			continue
		}
		if !leg.Amount.IsNegative() || !IsBankTransfer(leg.Name) {
			continue
		}

		ok, err := p.claim(ctx, leg.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		p.result.add(Match{
			Kind:            KindBankTransfer,
			Source:          leg.summary(),
			Date:            leg.Date,
			DetectionMethod: MethodNamePattern,
		})
		p.logger.Info("bank transfer detected",
			"transaction_id", leg.ID,
			"amount", leg.Amount.String())
	}
	return nil
}

func (p *pass) exactMatches(ctx context.Context, legs []Leg) error {
	for _, leg := range legs {
		if p.claims.Has(leg.ID) || leg.Amount.IsZero() {
			continue
		}

		_, open, err := p.refetch(ctx, leg.ID)
		if err != nil {
			return err
		}
		if !open {
			p.claims.Add(leg.ID)
			continue
		}

		match, err := p.exactCounterpart(ctx, leg)
		if err != nil {
			return err
		}
		if match == nil {
			continue
		}

		p.result.add(Match{
			Kind:            KindExactMatch,
			Source:          leg.summary(),
			Destination:     summarize(match, p.accounts, ""),
			Date:            leg.Date,
			DetectionMethod: MethodExactAmount,
		})
		p.logger.Info("exact transfer match",
			"transaction_id", leg.ID,
			"counterpart_id", match.ID,
			"amount", leg.Amount.String())
	}
	return nil
}

// exactCounterpart links leg to the first unclaimed exact negation in store
// order, trying later candidates when an earlier one is lost to a race.
func (p *pass) exactCounterpart(ctx context.Context, leg Leg) (*ledger.Transaction, error) {
	target := leg.Amount.Neg()
	candidates, err := p.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:     p.userID,
		IsTransfer: ledger.Bool(false),
		Amount:     &target,
		DateFrom:   ledger.Time(ledger.AddDays(leg.Date, -p.config.ExactWindowDays)),
		DateTo:     ledger.Time(ledger.AddDays(leg.Date, p.config.ExactWindowDays)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search counterpart of %d: %w", leg.ID, err)
	}

	for _, c := range candidates {
		if c.ID == leg.ID || p.claims.Has(c.ID) {
			continue
		}
		linked, err := p.link(ctx, leg.ID, c.ID, false)
		if err != nil {
			return nil, err
		}
		if linked {
			return c, nil
		}

		// Stop once the leg itself has been taken elsewhere.
		_, open, err := p.refetch(ctx, leg.ID)
		if err != nil {
			return nil, err
		}
		if !open {
			p.claims.Add(leg.ID)
			return nil, nil
		}
	}
	return nil, nil
}

// withinTolerance compares magnitudes, ignoring sign.
func withinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Abs().Sub(b.Abs()).Abs().LessThanOrEqual(tolerance)
}
