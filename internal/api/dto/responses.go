package dto

import (
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/index"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// BatchResponse is a reviewed import batch.
type BatchResponse struct {
	UserID     int64       `json:"user_id"`
	AccountID  int64       `json:"account_id"`
	Total      int         `json:"total"`
	Duplicates int         `json:"duplicates"`
	Skipped    int         `json:"skipped,omitempty"`
	Invalid    []string    `json:"invalid"`
	Candidates []Candidate `json:"candidates"`
}

// NewBatchResponse renders a batch after a dedup pass.
func NewBatchResponse(batch *dedup.Batch, result *dedup.Result) BatchResponse {
	resp := BatchResponse{
		UserID:     batch.UserID,
		AccountID:  batch.AccountID,
		Invalid:    []string{},
		Candidates: make([]Candidate, 0, len(batch.Candidates)),
	}
	if result != nil {
		resp.Total = result.Total
		resp.Duplicates = result.Duplicates
		for _, err := range result.Invalid {
			resp.Invalid = append(resp.Invalid, err.Error())
		}
	}
	for _, c := range batch.Candidates {
		resp.Candidates = append(resp.Candidates, FromCandidate(c))
	}
	return resp
}

// FromCandidate renders a ledger candidate.
func FromCandidate(c *ledger.Candidate) Candidate {
	selected := c.Selected
	out := Candidate{
		Row:         c.Row,
		Amount:      c.Amount,
		Description: c.Description,
		IsDuplicate: c.IsDuplicate,
		DuplicateOf: c.DuplicateOf,
		Selected:    &selected,
		Similarity:  c.Similarity,
	}
	if !c.Date.IsZero() {
		out.Date = c.Date.Format(ledger.DateLayout)
	}
	return out
}

// StartJobResponse is returned when a background job is accepted.
type StartJobResponse struct {
	JobID  string `json:"job_id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// SearchResponse is returned by transaction search.
type SearchResponse struct {
	Query string      `json:"query"`
	Count int         `json:"count"`
	Hits  []index.Hit `json:"hits"`
}
