package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/eshaffer321/ledgerwatch/internal/adapters/statement"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
	"github.com/eshaffer321/ledgerwatch/internal/domain/alerts"
	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/domain/recurring"
	"github.com/eshaffer321/ledgerwatch/internal/domain/transfer"
)

const (
	defaultRuleWidth = 60
	maxRuleWidth     = 100
)

// ruleWidth sizes separator lines to the terminal when w is one.
func ruleWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultRuleWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultRuleWidth
	}
	return min(width, maxRuleWidth)
}

func rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth(w)))
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// PrintHeader prints the application header
func PrintHeader(w io.Writer, pass string, userID int64) {
	fmt.Fprintf(w, "ledgerwatch: %s (user %d)\n", pass, userID)
	rule(w)
}

// PrintTransfers prints detected transfers.
func PrintTransfers(w io.Writer, result *transfer.Result) {
	if len(result.Matches) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "DATE\tTYPE\tSOURCE\tAMOUNT\tCOUNTERPART\tMETHOD")
		for _, m := range result.Matches {
			counterpart := "-"
			if m.Destination != nil {
				counterpart = fmt.Sprintf("%s (%s)", m.Destination.Name, m.Destination.Account)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s (%s)\t%s\t%s\t%s\n",
				m.Date.Format(ledger.DateLayout), m.Kind, m.Source.Name, m.Source.Account,
				m.Source.Amount.StringFixed(2), counterpart, m.DetectionMethod)
		}
		_ = tw.Flush()
		rule(w)
	}
	fmt.Fprintf(w, "Summary: Matches=%d\n", result.MatchCount)
}

// PrintSubscriptions prints a scan and status sweep.
func PrintSubscriptions(w io.Writer, summary *service.SubscriptionSummary) {
	scan := summary.Scan
	if len(scan.Series) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ID\tNAME\tCHANGE\tFREQUENCY\tAMOUNT\tNEXT DUE")
		for _, s := range scan.Series {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				s.SeriesID, s.Name, s.Change, s.Frequency, s.Amount.StringFixed(2), s.NextDueDate.Format(ledger.DateLayout))
		}
		_ = tw.Flush()
		rule(w)
	}
	fmt.Fprintf(w, "Summary: New=%d Updated=%d", scan.NewCount, scan.UpdatedCount)
	if summary.Statuses != nil {
		fmt.Fprintf(w, " Discontinued=%d", summary.Statuses.UpdatedCount)
	}
	fmt.Fprintln(w)
}

// PrintStatuses prints a status sweep.
func PrintStatuses(w io.Writer, result *recurring.StatusResult) {
	fmt.Fprintf(w, "Summary: Discontinued=%d\n", result.UpdatedCount)
}

// PrintInsights prints price hike findings.
func PrintInsights(w io.Writer, insights []recurring.Insight) {
	for _, in := range insights {
		fmt.Fprintf(w, "[%s] %s: %s (%s)\n", strings.ToUpper(in.Severity), in.Title, in.Message, in.Metric)
	}
	if len(insights) > 0 {
		rule(w)
	}
	fmt.Fprintf(w, "Summary: Insights=%d\n", len(insights))
}

// PrintUpcoming prints series due soon.
func PrintUpcoming(w io.Writer, due []*ledger.RecurringSeries) {
	if len(due) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "DUE\tNAME\tFREQUENCY\tAMOUNT")
		for _, s := range due {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				s.NextDueDate.Format(ledger.DateLayout), s.Name, s.Frequency, s.Amount.StringFixed(2))
		}
		_ = tw.Flush()
		rule(w)
	}
	fmt.Fprintf(w, "Summary: Due=%d\n", len(due))
}

// PrintAlerts prints the notifications an alert check created.
func PrintAlerts(w io.Writer, result *alerts.Result) {
	for _, n := range result.Notifications {
		fmt.Fprintf(w, "%s: %s\n", n.Title, n.Message)
	}
	if len(result.Notifications) > 0 {
		rule(w)
	}
	fmt.Fprintf(w, "Summary: Notifications=%d\n", result.NotificationsCreated)
}

// PrintBatch prints a reviewed import.
func PrintBatch(w io.Writer, batch *dedup.Batch, parsed *statement.ParseResult) {
	duplicates, selected := 0, 0
	if len(batch.Candidates) > 0 {
		tw := table(w)
		fmt.Fprintln(tw, "ROW\tDATE\tAMOUNT\tDESCRIPTION\tSTATUS")
		for _, c := range batch.Candidates {
			status := "new"
			switch {
			case c.IsDuplicate:
				duplicates++
				status = fmt.Sprintf("duplicate of %d", *c.DuplicateOf)
			case !c.Selected:
				status = "skipped"
			}
			if c.Selected {
				selected++
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				c.Row, c.Date.Format(ledger.DateLayout), c.Amount.StringFixed(2), c.Description, status)
		}
		_ = tw.Flush()
		rule(w)
	}

	fmt.Fprintf(w, "Summary: Rows=%d Duplicates=%d Selected=%d Skipped=%d Errors=%d\n",
		len(batch.Candidates), duplicates, selected, parsed.Skipped, len(parsed.Errors))
	if len(parsed.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, err := range parsed.Errors {
			fmt.Fprintf(w, "  - %v\n", err)
		}
	}
}

// PrintConfirm prints the outcome of committing an import.
func PrintConfirm(w io.Writer, result *dedup.ConfirmResult) {
	fmt.Fprintf(w, "\nImported %d transactions.\n", result.Created)
}
