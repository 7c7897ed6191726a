package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the matching windows and tolerances.
type Config struct {
	// CardLookbackDays and CardLookaheadDays bound the bank-side search
	// around a card payment: [date-lookback, date+lookahead].
	CardLookbackDays  int
	CardLookaheadDays int

	// ExactWindowDays bounds the exact-amount fallback: date ± window.
	ExactWindowDays int

	// FuzzyTolerance is the fraction of the card payment a name-matched
	// bank leg may differ by.
	FuzzyTolerance decimal.Decimal
}

// DefaultConfig returns the standard windows.
func DefaultConfig() Config {
	return Config{
		CardLookbackDays:  5,
		CardLookaheadDays: 2,
		ExactWindowDays:   3,
		FuzzyTolerance:    decimal.RequireFromString("0.05"),
	}
}

// Kind names the phase that produced a match.
type Kind string

const (
	KindCardPayment  Kind = "cc_payment_detected"
	KindBankTransfer Kind = "bank_transfer_detected"
	KindExactMatch   Kind = "exact_match"
)

// Method values for Match.DetectionMethod and LegSummary.MatchType.
const (
	MethodNamePattern     = "name_pattern"
	MethodExactAmount     = "exact_amount"
	MethodFuzzyAmountName = "name_pattern_fuzzy_amount"
)

// LegSummary describes one side of a match in a pass result.
type LegSummary struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Account   string          `json:"account"`
	MatchType string          `json:"match_type,omitempty"`
}

// Match is one transfer the pass flagged. Destination is nil when the
// source was claimed without a counterpart.
type Match struct {
	Kind            Kind        `json:"type"`
	Source          LegSummary  `json:"source"`
	Destination     *LegSummary `json:"destination"`
	Date            time.Time   `json:"date"`
	DetectionMethod string      `json:"detection_method"`
}

// Result summarizes one pass.
type Result struct {
	MatchCount int     `json:"match_count"`
	Matches    []Match `json:"matches"`
}

func (r *Result) add(m Match) {
	r.MatchCount++
	r.Matches = append(r.Matches, m)
}

// Claims is the set of transaction ids taken within one pass.
// A claimed id is never revisited by a later phase.
type Claims map[int64]struct{}

// Add claims ids.
func (c Claims) Add(ids ...int64) {
	for _, id := range ids {
		c[id] = struct{}{}
	}
}

// Has reports whether id is claimed.
func (c Claims) Has(id int64) bool {
	_, ok := c[id]
	return ok
}
