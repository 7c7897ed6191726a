package recurring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// Change describes what a scan did to a series.
type Change string

const (
	ChangeCreated Change = "created"
	ChangeUpdated Change = "updated"
)

// SeriesChange is one series written by a scan.
type SeriesChange struct {
	SeriesID    int64            `json:"series_id"`
	Name        string           `json:"name"`
	Change      Change           `json:"change"`
	Frequency   ledger.Frequency `json:"frequency"`
	Amount      decimal.Decimal  `json:"amount"`
	NextDueDate time.Time        `json:"next_due_date"`
}

// ScanResult summarizes a detection scan.
type ScanResult struct {
	NewCount     int            `json:"new_count"`
	UpdatedCount int            `json:"updated_count"`
	Series       []SeriesChange `json:"series"`
}

// StatusResult summarizes a status sweep.
type StatusResult struct {
	UpdatedCount int `json:"updated_count"`
}

// Insight is an advisory finding about a series.
type Insight struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Metric   string `json:"metric"`
}

// DueEvent is one projected charge of a series.
type DueEvent struct {
	ID       string              `json:"id"`
	SeriesID int64               `json:"series_id"`
	Title    string              `json:"title"`
	Date     time.Time           `json:"date"`
	Amount   decimal.Decimal     `json:"amount"`
	Type     string              `json:"type"`
	Status   ledger.SeriesStatus `json:"status"`
}
