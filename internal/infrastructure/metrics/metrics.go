// Package metrics exposes pass counters and timings on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pass outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Collector records ledgerwatch pass activity.
type Collector struct {
	registry *prometheus.Registry

	passRuns        *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	transferMatches *prometheus.CounterVec
	seriesChanges   *prometheus.CounterVec
	duplicates      prometheus.Counter
	notifications   *prometheus.CounterVec
}

// NewCollector registers every metric on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		passRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_pass_runs_total",
			Help: "Reconciliation passes run, by pass and outcome",
		}, []string{"pass", "outcome"}),
		passDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgerwatch_pass_duration_seconds",
			Help:    "Time taken by one reconciliation pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		transferMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_transfer_matches_total",
			Help: "Transfers detected, by detection method",
		}, []string{"method"}),
		seriesChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_series_changes_total",
			Help: "Recurring series created or updated",
		}, []string{"change"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerwatch_import_duplicates_total",
			Help: "Import candidates flagged as duplicates",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgerwatch_notifications_total",
			Help: "Alert notifications created, by rule type",
		}, []string{"rule_type"}),
	}
}

// ObservePass records one finished pass.
func (c *Collector) ObservePass(pass string, duration time.Duration, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	c.passRuns.WithLabelValues(pass, outcome).Inc()
	c.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// TransferMatch counts one detected transfer.
func (c *Collector) TransferMatch(method string) {
	c.transferMatches.WithLabelValues(method).Inc()
}

// SeriesChange counts one created or updated series.
func (c *Collector) SeriesChange(change string) {
	c.seriesChanges.WithLabelValues(change).Inc()
}

// Duplicates counts flagged import candidates.
func (c *Collector) Duplicates(n int) {
	if n > 0 {
		c.duplicates.Add(float64(n))
	}
}

// Notification counts one created notification.
func (c *Collector) Notification(ruleType string) {
	c.notifications.WithLabelValues(ruleType).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
