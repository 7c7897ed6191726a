package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
)

const seriesColumns = `id, user_id, name, amount, frequency, next_due_date, last_seen_date,
	status, detected_by_system, merchant_name, category`

// nameKey is the value the one-active-series unique index is built on.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ListSeries returns the user's series ordered by ID
func (s *Storage) ListSeries(ctx context.Context, userID int64, statuses ...ledger.SeriesStatus) ([]*ledger.RecurringSeries, error) {
	query := `SELECT ` + seriesColumns + ` FROM recurring_series WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += " AND status IN (" + strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",") + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*ledger.RecurringSeries
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

// GetSeries retrieves a series by ID
func (s *Storage) GetSeries(ctx context.Context, id int64) (*ledger.RecurringSeries, error) {
	series, err := scanSeries(s.db.QueryRowContext(ctx,
		`SELECT `+seriesColumns+` FROM recurring_series WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ledger.NotFoundError{Resource: "recurring series", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series %d: %w", id, err)
	}
	return series, nil
}

// CreateSeries inserts a series. A second active series for the same name
// violates the partial unique index and yields ledger.ErrConflict.
func (s *Storage) CreateSeries(ctx context.Context, series *ledger.RecurringSeries) error {
	if series.Status == "" {
		series.Status = ledger.SeriesActive
	}
	series.Amount = series.Amount.Round(2)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_series
		(user_id, name, name_key, amount, frequency, next_due_date, last_seen_date,
		 status, detected_by_system, merchant_name, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		series.UserID, series.Name, nameKey(series.Name), formatAmount(series.Amount),
		string(series.Frequency), nullableDate(series.NextDueDate), nullableDate(series.LastSeenDate),
		string(series.Status), boolInt(series.DetectedBySystem), series.MerchantName, series.Category)
	if isUniqueViolation(err) {
		return ledger.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create series: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	series.ID = id
	return nil
}

// UpdateSeries rewrites every mutable field of a series.
func (s *Storage) UpdateSeries(ctx context.Context, series *ledger.RecurringSeries) error {
	series.Amount = series.Amount.Round(2)

	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_series SET
			name = ?, name_key = ?, amount = ?, frequency = ?, next_due_date = ?,
			last_seen_date = ?, status = ?, merchant_name = ?, category = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		series.Name, nameKey(series.Name), formatAmount(series.Amount), string(series.Frequency),
		nullableDate(series.NextDueDate), nullableDate(series.LastSeenDate), string(series.Status),
		series.MerchantName, series.Category, series.ID)
	if isUniqueViolation(err) {
		return ledger.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update series %d: %w", series.ID, err)
	}

	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return &ledger.NotFoundError{Resource: "recurring series", ID: series.ID}
	}
	return nil
}

// SetSeriesStatus flips status only while the series is still in from.
func (s *Storage) SetSeriesStatus(ctx context.Context, id int64, from, to ledger.SeriesStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE recurring_series SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to set status on series %d: %w", id, err)
	}
	return affectedOne(res)
}

// ListExclusions returns the user's exclusion patterns
func (s *Storage) ListExclusions(ctx context.Context, userID int64) ([]ledger.ExclusionPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name_pattern FROM recurring_exclusions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exclusions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.ExclusionPattern
	for rows.Next() {
		var p ledger.ExclusionPattern
		if err := rows.Scan(&p.UserID, &p.NamePattern); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddExclusion records a pattern, ignoring duplicates.
func (s *Storage) AddExclusion(ctx context.Context, pattern ledger.ExclusionPattern) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO recurring_exclusions (user_id, name_pattern) VALUES (?, ?)`,
		pattern.UserID, pattern.NamePattern)
	if err != nil {
		return fmt.Errorf("failed to add exclusion: %w", err)
	}
	return nil
}

func scanSeries(row scanner) (*ledger.RecurringSeries, error) {
	var (
		r         ledger.RecurringSeries
		amount    string
		frequency string
		status    string
		nextDue   sql.NullString
		lastSeen  sql.NullString
		detected  int
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &amount, &frequency, &nextDue, &lastSeen,
		&status, &detected, &r.MerchantName, &r.Category)
	if err != nil {
		return nil, err
	}

	if r.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if r.NextDueDate, err = parseNullableDate(nextDue); err != nil {
		return nil, err
	}
	if r.LastSeenDate, err = parseNullableDate(lastSeen); err != nil {
		return nil, err
	}
	r.Frequency = ledger.Frequency(frequency)
	r.Status = ledger.SeriesStatus(status)
	r.DetectedBySystem = detected == 1
	return &r, nil
}
