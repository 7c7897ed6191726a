// Package recurring detects subscription-like charges from transaction
// history and maintains the lifecycle of the resulting series.
//
// A merchant qualifies when it has at least three expense charges whose
// day intervals fall in a weekly, monthly or yearly band with low spread.
// At most one active series exists per user and merchant key; a scan that
// loses a race to create one treats the conflict as a no-op.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// MinOccurrences is the smallest group a cadence is inferred from.
const MinOccurrences = 3

// Store is the ledger surface the detector needs.
type Store interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]*ledger.Transaction, error)
	ListSeries(ctx context.Context, userID int64, statuses ...ledger.SeriesStatus) ([]*ledger.RecurringSeries, error)
	GetSeries(ctx context.Context, id int64) (*ledger.RecurringSeries, error)
	CreateSeries(ctx context.Context, series *ledger.RecurringSeries) error
	UpdateSeries(ctx context.Context, series *ledger.RecurringSeries) error
	SetSeriesStatus(ctx context.Context, id int64, from, to ledger.SeriesStatus) (bool, error)
	ListExclusions(ctx context.Context, userID int64) ([]ledger.ExclusionPattern, error)
	AddExclusion(ctx context.Context, pattern ledger.ExclusionPattern) error
}

// Detector runs recurring-series passes.
type Detector struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a detector. A nil logger uses slog.Default().
func NewDetector(store Store, logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) today() time.Time {
	return ledger.Day(d.now())
}

// group is the charges sharing one normalized key, in date order.
type group struct {
	key  string
	txns []*ledger.Transaction
}

// Scan detects and upserts recurring series for one user.
func (d *Detector) Scan(ctx context.Context, userID int64) (*ScanResult, error) {
	txns, err := d.store.ListTransactions(ctx, ledger.TransactionFilter{
		UserID:     userID,
		Sign:       ledger.Negative,
		IsTransfer: ledger.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load expenses: %w", err)
	}

	exclusions, err := d.store.ListExclusions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exclusions: %w", err)
	}

	known, err := d.store.ListSeries(ctx, userID,
		ledger.SeriesActive, ledger.SeriesOverdue, ledger.SeriesDiscontinued)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}

	result := &ScanResult{Series: []SeriesChange{}}
	for _, g := range groupByKey(txns) {
		if excluded(g.key, exclusions) {
			d.logger.Debug("skipping excluded merchant", "key", g.key)
			continue
		}
		if len(g.txns) < MinOccurrences {
			continue
		}

		dates := make([]time.Time, len(g.txns))
		for i, t := range g.txns {
			dates[i] = t.Date
		}
		cadence, ok := Classify(dates)
		if !ok {
			continue
		}

		change, series, err := d.upsert(ctx, userID, g, cadence, known)
		if err != nil {
			return nil, err
		}
		if series == nil {
			continue
		}

		switch change {
		case ChangeCreated:
			result.NewCount++
			known = append(known, series)
		case ChangeUpdated:
			result.UpdatedCount++
		}
		result.Series = append(result.Series, SeriesChange{
			SeriesID:    series.ID,
			Name:        series.Name,
			Change:      change,
			Frequency:   series.Frequency,
			Amount:      series.Amount,
			NextDueDate: series.NextDueDate,
		})
	}

	d.logger.Info("subscription scan complete",
		"user_id", userID,
		"new", result.NewCount,
		"updated", result.UpdatedCount)
	return result, nil
}

// groupByKey buckets expenses by NormalizeKey of their display name,
// keeping first-seen key order and the store's date order within a group.
func groupByKey(txns []*ledger.Transaction) []*group {
	var (
		order []*group
		byKey = make(map[string]*group)
	)
	for _, t := range txns {
		key := NormalizeKey(t.DisplayName())
		if key == "" {
			continue
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{key: key}
			byKey[key] = g
			order = append(order, g)
		}
		g.txns = append(g.txns, t)
	}
	for _, g := range order {
		sort.SliceStable(g.txns, func(i, j int) bool { return g.txns[i].Date.Before(g.txns[j].Date) })
	}
	return order
}

func excluded(key string, patterns []ledger.ExclusionPattern) bool {
	for _, p := range patterns {
		if strings.EqualFold(strings.TrimSpace(p.NamePattern), key) {
			return true
		}
	}
	return false
}

// findExisting returns the series whose name contains key, preferring an
// active one.
func findExisting(key string, known []*ledger.RecurringSeries) *ledger.RecurringSeries {
	needle := strings.ToLower(key)
	var fallback *ledger.RecurringSeries
	for _, s := range known {
		if !strings.Contains(strings.ToLower(s.Name), needle) {
			continue
		}
		if s.Status == ledger.SeriesActive {
			return s
		}
		if fallback == nil {
			fallback = s
		}
	}
	return fallback
}

func meanAbsAmount(txns []*ledger.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Amount.Abs())
	}
	return sum.Div(decimal.NewFromInt(int64(len(txns)))).Round(2)
}

// upsert writes the series for one qualifying group. A nil series means
// nothing was written.
func (d *Detector) upsert(ctx context.Context, userID int64, g *group, c Cadence, known []*ledger.RecurringSeries) (Change, *ledger.RecurringSeries, error) {
	last := g.txns[len(g.txns)-1]
	amount := meanAbsAmount(g.txns)
	nextDue := ledger.AddDays(last.Date, c.IntervalDays())

	if existing := findExisting(g.key, known); existing != nil {
		// Re-check before write: the user may have cancelled it meanwhile.
		current, err := d.store.GetSeries(ctx, existing.ID)
		if ledger.IsNotFound(err) {
			return "", nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to reload series %d: %w", existing.ID, err)
		}
		if current.Status == ledger.SeriesCancelled {
			return "", nil, nil
		}

		updated := *current
		updated.LastSeenDate = last.Date
		updated.NextDueDate = nextDue
		updated.Amount = amount
		updated.MerchantName = last.MerchantName
		updated.Status = ledger.SeriesActive
		if sameSeries(current, &updated) {
			return "", nil, nil
		}

		err = d.store.UpdateSeries(ctx, &updated)
		if errors.Is(err, ledger.ErrConflict) {
			d.logger.Debug("series reactivation lost to concurrent pass", "series_id", current.ID)
			return "", nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to update series %d: %w", current.ID, err)
		}
		*existing = updated
		d.logger.Info("updated recurring series",
			"series_id", updated.ID,
			"name", updated.Name,
			"next_due", updated.NextDueDate.Format(ledger.DateLayout))
		return ChangeUpdated, &updated, nil
	}

	series := &ledger.RecurringSeries{
		UserID:           userID,
		Name:             g.key,
		Amount:           amount,
		Frequency:        c.Frequency,
		NextDueDate:      nextDue,
		LastSeenDate:     last.Date,
		Status:           ledger.SeriesActive,
		DetectedBySystem: true,
		MerchantName:     last.MerchantName,
		Category:         last.Category,
	}
	err := d.store.CreateSeries(ctx, series)
	if errors.Is(err, ledger.ErrConflict) {
		d.logger.Debug("series already created by concurrent pass", "key", g.key)
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to create series %q: %w", g.key, err)
	}
	d.logger.Info("detected recurring series",
		"series_id", series.ID,
		"name", series.Name,
		"frequency", series.Frequency,
		"amount", series.Amount.StringFixed(2))
	return ChangeCreated, series, nil
}

func sameSeries(a, b *ledger.RecurringSeries) bool {
	return a.Status == b.Status &&
		a.Amount.Equal(b.Amount) &&
		a.MerchantName == b.MerchantName &&
		a.LastSeenDate.Equal(b.LastSeenDate) &&
		a.NextDueDate.Equal(b.NextDueDate)
}

// UpdateStatuses discontinues active series not seen within their grace period.
func (d *Detector) UpdateStatuses(ctx context.Context, userID int64) (*StatusResult, error) {
	active, err := d.store.ListSeries(ctx, userID, ledger.SeriesActive)
	if err != nil {
		return nil, fmt.Errorf("failed to load active series: %w", err)
	}

	today := d.today()
	result := &StatusResult{}
	for _, s := range active {
		if s.LastSeenDate.IsZero() {
			continue
		}
		grace, ok := gracePeriods[s.Frequency]
		if !ok {
			continue
		}
		if ledger.DaysBetween(s.LastSeenDate, today) <= grace {
			continue
		}

		ok, err := d.store.SetSeriesStatus(ctx, s.ID, ledger.SeriesActive, ledger.SeriesDiscontinued)
		if err != nil {
			return nil, fmt.Errorf("failed to discontinue series %d: %w", s.ID, err)
		}
		if ok {
			result.UpdatedCount++
			d.logger.Info("discontinued recurring series", "series_id", s.ID, "name", s.Name)
		}
	}
	return result, nil
}

// Exclude cancels a series at the user's request and records its name so
// later scans do not recreate it.
func (d *Detector) Exclude(ctx context.Context, userID, seriesID int64) error {
	series, err := d.store.GetSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if series.UserID != userID {
		return &ledger.NotFoundError{Resource: "recurring series", ID: seriesID}
	}

	if err := d.store.AddExclusion(ctx, ledger.ExclusionPattern{UserID: userID, NamePattern: series.Name}); err != nil {
		return fmt.Errorf("failed to record exclusion: %w", err)
	}

	if series.Status != ledger.SeriesCancelled {
		if _, err := d.store.SetSeriesStatus(ctx, seriesID, series.Status, ledger.SeriesCancelled); err != nil {
			return fmt.Errorf("failed to cancel series %d: %w", seriesID, err)
		}
	}
	d.logger.Info("excluded recurring series", "series_id", seriesID, "name", series.Name)
	return nil
}
