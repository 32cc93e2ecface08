package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/vbonduro/stockcount/internal/domain"
)

type CountLogStore struct {
	db DBTX
}

func NewCountLogStore(db DBTX) *CountLogStore {
	return &CountLogStore{db: db}
}

const countLogColumns = `session_id, row_id, ts, operator, location_code, product_name, sku, batch, qty, edited, edit_ts, formula`

const defaultHistoryLimit = 500

// Append inserts entries in order. A duplicate row_id fails the whole call.
func (s *CountLogStore) Append(ctx context.Context, entries []domain.CountEntry) error {
	for _, e := range entries {
		var editTS any
		if e.EditTimestamp != nil {
			editTS = formatTime(*e.EditTimestamp)
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO count_log (`+countLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, e.SessionID, e.RowID, formatTime(e.Timestamp), e.Operator, e.Location, e.ProductName,
			e.SKU, e.Batch, e.Qty, e.Edited, editTS, e.Formula)
		if err != nil {
			return fmt.Errorf("failed to append count entry %s: %w", e.RowID, err)
		}
	}
	return nil
}

func (s *CountLogStore) Get(ctx context.Context, rowID string) (*domain.CountEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+countLogColumns+` FROM count_log WHERE row_id = ?
	`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get count entry: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// History returns entries matching filter, newest first.
func (s *CountLogStore) History(ctx context.Context, f domain.HistoryFilter) ([]domain.CountEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Operator != "" {
		where = append(where, "operator = ?")
		args = append(args, f.Operator)
	}
	if f.Location != "" {
		where = append(where, "location_code = ?")
		args = append(args, f.Location)
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	q := `SELECT ` + countLogColumns + ` FROM count_log`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanEntries(rows)
}

// Update edits qty, formula and optionally batch in place, marking the entry
// edited. It reports whether the entry existed.
func (s *CountLogStore) Update(ctx context.Context, rowID string, edit domain.EntryEdit, editedAt time.Time) (bool, error) {
	q := `UPDATE count_log SET qty = ?, formula = ?, edited = 1, edit_ts = ?`
	args := []any{edit.Qty, edit.Formula, formatTime(editedAt)}
	if edit.Batch != nil {
		q += `, batch = ?`
		args = append(args, *edit.Batch)
	}
	q += ` WHERE row_id = ?`
	args = append(args, rowID)

	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update count entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *CountLogStore) Delete(ctx context.Context, rowID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM count_log WHERE row_id = ?
	`, rowID)
	if err != nil {
		return false, fmt.Errorf("failed to delete count entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func scanEntries(rows *sql.Rows) ([]domain.CountEntry, error) {
	defer closeRows(rows)

	var entries []domain.CountEntry
	for rows.Next() {
		var (
			e      domain.CountEntry
			ts     string
			editTS sql.NullString
		)
		if err := rows.Scan(&e.SessionID, &e.RowID, &ts, &e.Operator, &e.Location, &e.ProductName,
			&e.SKU, &e.Batch, &e.Qty, &e.Edited, &editTS, &e.Formula); err != nil {
			return nil, fmt.Errorf("failed to scan count entry: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, err
		}
		e.Timestamp = t
		if editTS.Valid {
			et, err := parseTime(editTS.String)
			if err != nil {
				return nil, err
			}
			e.EditTimestamp = &et
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count entries: %w", err)
	}
	return entries, nil
}
