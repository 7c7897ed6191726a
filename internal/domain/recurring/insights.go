package recurring

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

const (
	insightWindow = 5
	maxSteps      = 100
)

var hikeFactor = decimal.RequireFromString("1.05")

// Insights flags price hikes on active series: the latest of the five most
// recent matching charges is more than 5% above the mean of the rest.
func (d *Detector) Insights(ctx context.Context, userID int64) ([]Insight, error) {
	active, err := d.store.ListSeries(ctx, userID, ledger.SeriesActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load active series: %w", err)
	}

	insights := []Insight{}
	for _, s := range active {
		query := s.MerchantName
		if query == "" {
			query = s.Name
		}

		recent, err := d.store.ListTransactions(ctx, ledger.TransactionFilter{
			UserID:       userID,
			NameContains: query,
			Sign:         ledger.Negative,
			Newest:       true,
			Limit:        insightWindow,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load charges for series %d: %w", s.ID, err)
		}
		if len(recent) < 2 {
			continue
		}

		latest := recent[0].Amount.Abs()
		sum := decimal.Zero
		for _, t := range recent[1:] {
			sum = sum.Add(t.Amount.Abs())
		}
		avg := sum.Div(decimal.NewFromInt(int64(len(recent) - 1)))

		if !avg.IsPositive() || !latest.GreaterThan(avg.Mul(hikeFactor)) {
			continue
		}

		diff := latest.Sub(avg)
		insights = append(insights, Insight{
			ID:       "hike_" + strconv.FormatInt(s.ID, 10),
			Type:     "price_hike",
			Title:    "Price Hike: " + s.Name,
			Message:  fmt.Sprintf("Latest payment ($%s) is higher than usual ($%s).", latest.StringFixed(2), avg.StringFixed(2)),
			Severity: "warning",
			Metric:   "+$" + diff.StringFixed(2),
		})
	}
	return insights, nil
}

// Upcoming returns active series due between today and today+within days,
// soonest first.
func (d *Detector) Upcoming(ctx context.Context, userID int64, within int) ([]*ledger.RecurringSeries, error) {
	active, err := d.store.ListSeries(ctx, userID, ledger.SeriesActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load active series: %w", err)
	}

	today := d.today()
	until := ledger.AddDays(today, within)

	due := []*ledger.RecurringSeries{}
	for _, s := range active {
		if s.NextDueDate.IsZero() || s.NextDueDate.Before(today) || s.NextDueDate.After(until) {
			continue
		}
		due = append(due, s)
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextDueDate.Before(due[j].NextDueDate) })
	return due, nil
}

// Calendar projects active series into due events within [from, to].
// Each series is stepped from its next due date, at most 100 periods.
func (d *Detector) Calendar(ctx context.Context, userID int64, from, to time.Time) ([]DueEvent, error) {
	if to.Before(from) {
		return nil, &ledger.ValidationError{Field: "to", Value: to.Format(ledger.DateLayout), Reason: "end before start"}
	}
	active, err := d.store.ListSeries(ctx, userID, ledger.SeriesActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load active series: %w", err)
	}

	from, to = ledger.Day(from), ledger.Day(to)
	events := []DueEvent{}
	for _, s := range active {
		if s.NextDueDate.IsZero() {
			continue
		}
		for n := 0; n < maxSteps; n++ {
			date, ok := step(s.NextDueDate, s.Frequency, n)
			if !ok || date.After(to) {
				break
			}
			if date.Before(from) {
				continue
			}
			events = append(events, DueEvent{
				ID:       strconv.FormatInt(s.ID, 10) + "_" + date.Format(ledger.DateLayout),
				SeriesID: s.ID,
				Title:    s.Name,
				Date:     date,
				Amount:   s.Amount,
				Type:     "bill",
				Status:   s.Status,
			})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events, nil
}
