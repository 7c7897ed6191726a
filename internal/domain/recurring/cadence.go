package recurring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

var (
	digitRuns  = regexp.MustCompile(`\d+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeKey groups a merchant's charges across statement noise:
// digit runs are removed and whitespace collapsed.
// "NETFLIX.COM 8473" and "NETFLIX.COM 1192" share a key.
func NormalizeKey(name string) string {
	key := digitRuns.ReplaceAllString(name, "")
	key = whitespace.ReplaceAllString(key, " ")
	return strings.TrimSpace(key)
}

// band is one cadence classification rule.
type band struct {
	frequency ledger.Frequency
	minMean   float64
	maxMean   float64
	maxStdDev float64
}

// bands are checked in order; the first match wins.
var bands = []band{
	{ledger.FrequencyMonthly, 25, 35, 5},
	{ledger.FrequencyYearly, 355, 375, 10},
	{ledger.FrequencyWeekly, 6, 8, 2},
}

// gracePeriods is how long a series may go unseen before it is discontinued.
var gracePeriods = map[ledger.Frequency]int{
	ledger.FrequencyMonthly: 45,
	ledger.FrequencyYearly:  380,
	ledger.FrequencyWeekly:  14,
}

// Cadence is the interval statistics of a group of charges.
type Cadence struct {
	Frequency ledger.Frequency
	Mean      float64
	StdDev    float64
}

// Classify computes day deltas between consecutive sorted dates and matches
// them against the cadence bands. ok is false when no band matches.
func Classify(dates []time.Time) (c Cadence, ok bool) {
	if len(dates) < 2 {
		return Cadence{}, false
	}

	deltas := make([]float64, 0, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		deltas = append(deltas, float64(ledger.DaysBetween(dates[i-1], dates[i])))
	}

	c.Mean, c.StdDev = meanStdDev(deltas)
	for _, b := range bands {
		if c.Mean >= b.minMean && c.Mean <= b.maxMean && c.StdDev < b.maxStdDev {
			c.Frequency = b.frequency
			return c, true
		}
	}
	return c, false
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// IntervalDays rounds the mean interval to whole days.
func (c Cadence) IntervalDays() int {
	return int(math.Round(c.Mean))
}

// step advances a due date by one period of f. Months are added from the
// anchor so month-end dates do not drift.
func step(anchor time.Time, f ledger.Frequency, n int) (time.Time, bool) {
	switch f {
	case ledger.FrequencyWeekly:
		return ledger.AddDays(anchor, 7*n), true
	case ledger.FrequencyMonthly:
		return ledger.AddMonths(anchor, n), true
	case ledger.FrequencyYearly:
		return ledger.AddMonths(anchor, 12*n), true
	}
	return time.Time{}, false
}
