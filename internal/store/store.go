package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the table stores over one database.
type Store struct {
	db        *sql.DB
	Catalog   *CatalogStore
	CountLog  *CountLogStore
	Operators *OperatorStore
}

func New(db *sql.DB) *Store {
	return &Store{
		db:        db,
		Catalog:   NewCatalogStore(db),
		CountLog:  NewCountLogStore(db),
		Operators: NewOperatorStore(db),
	}
}

// Tx exposes the table stores bound to one SQL transaction.
type Tx struct {
	Catalog  *CatalogStore
	CountLog *CountLogStore
}

// RunInTransaction runs fn in a SQL transaction, committing when fn returns
// nil and rolling back otherwise.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Catalog:  NewCatalogStore(sqlTx),
		CountLog: NewCountLogStore(sqlTx),
	}
	if err := fn(tx); err != nil {
		if rerr := sqlTx.Rollback(); rerr != nil {
			slog.Error("failed to roll back transaction", "error", rerr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}

// containsPattern builds a case-insensitive LIKE pattern matching query
// anywhere, with LIKE metacharacters escaped.
func containsPattern(query string) string {
	return "%" + escapeLike(strings.ToLower(query)) + "%"
}

func prefixPattern(query string) string {
	return escapeLike(strings.ToLower(query)) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}
