package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// Candidate is one statement row as exchanged with the review UI.
// Dates use YYYY-MM-DD.
type Candidate struct {
	Row         int             `json:"row"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IsDuplicate bool            `json:"is_duplicate"`
	DuplicateOf *int64          `json:"duplicate_of,omitempty"`
	Selected    *bool           `json:"selected,omitempty"`
	Similarity  float64         `json:"similarity,omitempty"`
}

// BatchRequest is the body of POST /api/imports/dedup and /confirm.
type BatchRequest struct {
	UserID     int64       `json:"user_id"`
	AccountID  int64       `json:"account_id"`
	Candidates []Candidate `json:"candidates"`
}

// ToBatch converts the request into a dedup batch. A candidate without an
// explicit selection is selected. An unparsable date becomes the zero date,
// which the dedup pass reports as invalid.
func (r BatchRequest) ToBatch() *dedup.Batch {
	batch := &dedup.Batch{
		UserID:     r.UserID,
		AccountID:  r.AccountID,
		Candidates: make([]*ledger.Candidate, 0, len(r.Candidates)),
	}
	for i, c := range r.Candidates {
		row := c.Row
		if row == 0 {
			row = i + 1
		}
		var date time.Time
		if parsed, err := ledger.ParseDay(c.Date); err == nil {
			date = parsed
		}
		candidate := ledger.NewCandidate(row, date, c.Amount, c.Description)
		candidate.IsDuplicate = c.IsDuplicate
		candidate.DuplicateOf = c.DuplicateOf
		if c.Selected != nil {
			candidate.Selected = *c.Selected
		}
		batch.Candidates = append(batch.Candidates, candidate)
	}
	return batch
}

// StartJobRequest is the body of POST /api/users/{userID}/jobs.
type StartJobRequest struct {
	Kind string `json:"kind"`
}
