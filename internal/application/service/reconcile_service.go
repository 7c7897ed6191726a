package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/adapters/statement"
	"github.com/eshaffer321/ledgerwatch/internal/domain/alerts"
	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/domain/recurring"
	"github.com/eshaffer321/ledgerwatch/internal/domain/transfer"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/config"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/index"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/metrics"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

// Pass names, used for metrics labels and job kinds.
const (
	PassTransfers     = "transfers"
	PassSubscriptions = "subscriptions"
	PassStatuses      = "statuses"
	PassDedup         = "dedup"
	PassAlerts        = "alerts"
)

// ReconcileService runs the reconciliation passes over one store.
type ReconcileService struct {
	storage   storage.Repository
	matcher   *transfer.Matcher
	detector  *recurring.Detector
	dedup     *dedup.Deduplicator
	evaluator *alerts.Evaluator
	index     *index.TransactionIndex
	metrics   *metrics.Collector
	logger    *slog.Logger

	jobs *jobRegistry
}

// Option configures a ReconcileService.
type Option func(*options)

type options struct {
	now     func() time.Time
	metrics *metrics.Collector
	index   *index.TransactionIndex
}

// WithClock sets the time source of the date-sensitive passes.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics records pass metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithIndex serves SearchTransactions from idx and invalidates it on writes.
func WithIndex(idx *index.TransactionIndex) Option {
	return func(o *options) { o.index = idx }
}

// NewReconcileService wires every pass to store using the detection settings
// from cfg. A nil cfg uses config.Defaults().
func NewReconcileService(cfg *config.Config, store storage.Repository, logger *slog.Logger, opts ...Option) *ReconcileService {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector()
	}
	if o.index == nil {
		o.index = index.New(store, cfg.Index.TTL, logger.With("system", "index"))
	}

	d := cfg.Detection
	transferCfg := transfer.Config{
		CardLookbackDays:  d.CardLookbackDays,
		CardLookaheadDays: d.CardLookaheadDays,
		ExactWindowDays:   d.ExactWindowDays,
		FuzzyTolerance:    decimal.NewFromFloat(d.FuzzyTolerance),
	}
	dedupCfg := dedup.DefaultConfig()
	dedupCfg.WindowDays = d.DedupWindowDays

	evaluator := alerts.NewEvaluator(store, store, logger.With("system", "alerts"),
		alerts.WithClock(o.now), alerts.WithCooldown(d.AlertCooldown))

	return &ReconcileService{
		storage:   store,
		matcher:   transfer.NewMatcher(store, transferCfg, logger.With("system", "transfer")),
		detector:  recurring.NewDetector(store, logger.With("system", "recurring"), recurring.WithClock(o.now)),
		dedup:     dedup.New(store, dedupCfg, logger.With("system", "dedup")),
		evaluator: evaluator,
		index:     o.index,
		metrics:   o.metrics,
		logger:    logger,
		jobs:      newJobRegistry(),
	}
}

// Metrics exposes the collector for the /metrics endpoint.
func (s *ReconcileService) Metrics() *metrics.Collector {
	return s.metrics
}

// observe times one pass and records its outcome.
func (s *ReconcileService) observe(pass string, started time.Time, err error) {
	elapsed := time.Since(started)
	s.metrics.ObservePass(pass, elapsed, err)
	if err != nil {
		s.logger.Error("pass failed", "pass", pass, "duration", elapsed, "error", err)
		return
	}
	s.logger.Debug("pass finished", "pass", pass, "duration", elapsed)
}

// RunTransferDetection links internal transfers for one user.
func (s *ReconcileService) RunTransferDetection(ctx context.Context, userID int64) (result *transfer.Result, err error) {
	defer func(start time.Time) { s.observe(PassTransfers, start, err) }(time.Now())

	result, err = s.matcher.Run(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range result.Matches {
		s.metrics.TransferMatch(m.DetectionMethod)
	}
	if result.MatchCount > 0 {
		s.index.Invalidate(userID)
	}
	return result, nil
}

// RunSubscriptionScan detects and upserts recurring series.
func (s *ReconcileService) RunSubscriptionScan(ctx context.Context, userID int64) (result *recurring.ScanResult, err error) {
	defer func(start time.Time) { s.observe(PassSubscriptions, start, err) }(time.Now())

	result, err = s.detector.Scan(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range result.Series {
		s.metrics.SeriesChange(string(c.Change))
	}
	return result, nil
}

// UpdateSubscriptionStatuses discontinues series past their grace period.
func (s *ReconcileService) UpdateSubscriptionStatuses(ctx context.Context, userID int64) (result *recurring.StatusResult, err error) {
	defer func(start time.Time) { s.observe(PassStatuses, start, err) }(time.Now())
	return s.detector.UpdateStatuses(ctx, userID)
}

// ScanAndUpdateSubscriptions runs a scan followed by a status sweep.
func (s *ReconcileService) ScanAndUpdateSubscriptions(ctx context.Context, userID int64) (*SubscriptionSummary, error) {
	scan, err := s.RunSubscriptionScan(ctx, userID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.UpdateSubscriptionStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionSummary{Scan: scan, Statuses: statuses}, nil
}

// SubscriptionSummary is the combined outcome of a scan and a status sweep.
type SubscriptionSummary struct {
	Scan     *recurring.ScanResult   `json:"scan"`
	Statuses *recurring.StatusResult `json:"statuses"`
}

// SubscriptionInsights reports price hikes on active series.
func (s *ReconcileService) SubscriptionInsights(ctx context.Context, userID int64) ([]recurring.Insight, error) {
	return s.detector.Insights(ctx, userID)
}

// UpcomingBills lists active series due within days.
func (s *ReconcileService) UpcomingBills(ctx context.Context, userID int64, days int) ([]*ledger.RecurringSeries, error) {
	return s.detector.Upcoming(ctx, userID, days)
}

// BillCalendar projects due events into [from, to].
func (s *ReconcileService) BillCalendar(ctx context.Context, userID int64, from, to time.Time) ([]recurring.DueEvent, error) {
	return s.detector.Calendar(ctx, userID, from, to)
}

// ExcludeSeries cancels a series and suppresses its redetection.
func (s *ReconcileService) ExcludeSeries(ctx context.Context, userID, seriesID int64) error {
	return s.detector.Exclude(ctx, userID, seriesID)
}

// RunImportDedup flags duplicates in a batch in place.
func (s *ReconcileService) RunImportDedup(ctx context.Context, batch *dedup.Batch) (result *dedup.Result, err error) {
	defer func(start time.Time) { s.observe(PassDedup, start, err) }(time.Now())

	result, err = s.dedup.Run(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.metrics.Duplicates(result.Duplicates)
	return result, nil
}

// ImportStatement parses a CSV export into a batch for accountID and flags
// its duplicates. Nothing is written to the ledger.
func (s *ReconcileService) ImportStatement(ctx context.Context, userID, accountID int64, r io.Reader) (*dedup.Batch, *statement.ParseResult, error) {
	account, err := s.storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.UserID != userID {
		return nil, nil, &ledger.NotFoundError{Resource: "account", ID: accountID}
	}

	parsed, err := statement.ParseCSV(r)
	if err != nil {
		return nil, nil, err
	}
	batch := &dedup.Batch{UserID: userID, AccountID: accountID, Candidates: parsed.Candidates}
	if _, err := s.RunImportDedup(ctx, batch); err != nil {
		return nil, nil, err
	}
	return batch, parsed, nil
}

// ConfirmImport writes the selected candidates to the ledger.
func (s *ReconcileService) ConfirmImport(ctx context.Context, batch *dedup.Batch) (*dedup.ConfirmResult, error) {
	result, err := s.dedup.Confirm(ctx, batch)
	if result != nil && result.Created > 0 {
		s.index.Invalidate(batch.UserID)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LedgerDuplicates groups likely duplicate rows already in the ledger.
func (s *ReconcileService) LedgerDuplicates(ctx context.Context, userID int64) ([][]*ledger.Transaction, error) {
	return s.dedup.FindLedgerDuplicates(ctx, userID)
}

// RunAlertCheck evaluates the user's alert rules.
func (s *ReconcileService) RunAlertCheck(ctx context.Context, userID int64) (result *alerts.Result, err error) {
	defer func(start time.Time) { s.observe(PassAlerts, start, err) }(time.Now())

	rules, err := s.storage.ListActiveAlertRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert rules: %w", err)
	}
	ruleTypes := make(map[int64]ledger.RuleType, len(rules))
	for _, r := range rules {
		ruleTypes[r.ID] = r.Type
	}

	result, err = s.evaluator.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, n := range result.Notifications {
		if n.RuleID != nil {
			s.metrics.Notification(string(ruleTypes[*n.RuleID]))
		}
	}
	return result, nil
}

// SearchTransactions runs a fuzzy text search over the user's ledger.
func (s *ReconcileService) SearchTransactions(ctx context.Context, userID int64, query string, limit int) ([]index.Hit, error) {
	return s.index.Search(ctx, userID, query, limit)
}

// Close releases the search index.
func (s *ReconcileService) Close() error {
	return s.index.Close()
}
