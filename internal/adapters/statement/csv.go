// Package statement turns bank statement exports into import candidates.
package statement

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

// DefaultDescription names rows without a description column.
const DefaultDescription = "Unknown"

var (
	amountJunk = regexp.MustCompile(`[^\d.-]`)

	dateLayouts = []string{
		ledger.DateLayout,
		"01/02/2006",
		"1/2/2006",
		"01/02/06",
		"1/2/06",
		"2006/01/02",
		"01-02-2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"02 Jan 2006",
		"02-Jan-2006",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
)

// ParseResult is the outcome of reading one statement.
type ParseResult struct {
	Candidates []*ledger.Candidate
	// Skipped counts rows with an empty date or amount cell.
	Skipped int
	// Errors holds one ValidationError per unparseable row.
	Errors []error
}

type columns struct {
	date, amount, description int
}

// ParseCSV reads a headered CSV export. Columns are found by name: the first
// header containing "date", the first containing "amount", "debit" or
// "credit", and the first containing "description", "name", "payee" or
// "memo". Every parsed row becomes a selected candidate.
func ParseCSV(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ledger.ValidationError{Item: "statement", Field: "header", Reason: "file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Candidates: []*ledger.Candidate{}}
	row := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			result.Errors = append(result.Errors, &ledger.ValidationError{
				Item:   rowItem(row),
				Field:  "record",
				Reason: err.Error(),
			})
			continue
		}

		dateStr := cell(record, cols.date)
		amountStr := cell(record, cols.amount)
		if dateStr == "" || amountStr == "" {
			result.Skipped++
			continue
		}

		description := cell(record, cols.description)
		if cols.description < 0 || description == "" {
			description = DefaultDescription
		}

		date, err := ParseDate(dateStr)
		if err != nil {
			result.Errors = append(result.Errors, &ledger.ValidationError{
				Item: rowItem(row), Field: "date", Value: dateStr, Reason: "unrecognized date format",
			})
			continue
		}
		amount, err := ParseAmount(amountStr)
		if err != nil {
			result.Errors = append(result.Errors, &ledger.ValidationError{
				Item: rowItem(row), Field: "amount", Value: amountStr, Reason: "not a number",
			})
			continue
		}

		result.Candidates = append(result.Candidates, ledger.NewCandidate(row, date, amount, description))
	}
	return result, nil
}

func detectColumns(header []string) (columns, error) {
	cols := columns{date: -1, amount: -1, description: -1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if cols.date < 0 && strings.Contains(h, "date") {
			cols.date = i
		}
		if cols.amount < 0 && containsAny(h, "amount", "debit", "credit") {
			cols.amount = i
		}
		if cols.description < 0 && containsAny(h, "description", "name", "payee", "memo") {
			cols.description = i
		}
	}
	if cols.date < 0 || cols.amount < 0 {
		return cols, &ledger.ValidationError{
			Item:   "statement",
			Field:  "header",
			Value:  strings.Join(header, ","),
			Reason: "could not detect date or amount columns",
		}
	}
	return cols, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func rowItem(row int) string {
	return "row " + strconv.Itoa(row)
}

// ParseAmount strips currency symbols and thousands separators.
// A parenthesized value is negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	cleaned := amountJunk.ReplaceAllString(s, "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Abs().Neg()
	}
	return d.Round(2), nil
}

// ParseDate tries the common statement layouts in order.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ledger.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
