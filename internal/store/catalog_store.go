package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/stockcount/internal/domain"
)

type CatalogStore struct {
	db DBTX
}

func NewCatalogStore(db DBTX) *CatalogStore {
	return &CatalogStore{db: db}
}

const catalogColumns = `location_code, product_name, sku, batch, barcode`

func (s *CatalogStore) Get(ctx context.Context, location, sku string) (*domain.CatalogRow, error) {
	row := &domain.CatalogRow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT `+catalogColumns+` FROM catalog WHERE location_code = ? AND sku = ?
	`, location, sku).Scan(&row.Location, &row.ProductName, &row.SKU, &row.Batch, &row.Barcode)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog row: %w", err)
	}
	return row, nil
}

func (s *CatalogStore) ListByLocation(ctx context.Context, location string) ([]domain.CatalogRow, error) {
	return s.query(ctx, `
		SELECT `+catalogColumns+` FROM catalog
		WHERE location_code = ? ORDER BY product_name ASC, sku ASC
	`, location)
}

// All returns every catalog row. Used for warmup sampling.
func (s *CatalogStore) All(ctx context.Context) ([]domain.CatalogRow, error) {
	return s.query(ctx, `
		SELECT `+catalogColumns+` FROM catalog ORDER BY location_code ASC, product_name ASC
	`)
}

// Search matches product name, SKU or barcode case-insensitively.
func (s *CatalogStore) Search(ctx context.Context, query string, limit int) ([]domain.CatalogRow, error) {
	pattern := containsPattern(query)
	return s.query(ctx, `
		SELECT `+catalogColumns+` FROM catalog
		WHERE LOWER(product_name) LIKE ? ESCAPE '\'
		   OR LOWER(sku) LIKE ? ESCAPE '\'
		   OR LOWER(barcode) LIKE ? ESCAPE '\'
		ORDER BY product_name ASC, location_code ASC
		LIMIT ?
	`, pattern, pattern, pattern, limit)
}

func (s *CatalogStore) LookupBarcode(ctx context.Context, barcode string) ([]domain.CatalogRow, error) {
	return s.query(ctx, `
		SELECT `+catalogColumns+` FROM catalog
		WHERE barcode = ? ORDER BY location_code ASC
	`, barcode)
}

// SearchLocations returns distinct location codes starting with query.
func (s *CatalogStore) SearchLocations(ctx context.Context, query string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT location_code FROM catalog
		WHERE LOWER(location_code) LIKE ? ESCAPE '\'
		ORDER BY location_code ASC
		LIMIT ?
	`, prefixPattern(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search locations: %w", err)
	}
	defer closeRows(rows)

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}
	return locations, nil
}

// InsertMissing inserts rows whose (location, sku) is not yet present and
// returns how many were inserted. Existing rows are left untouched.
func (s *CatalogStore) InsertMissing(ctx context.Context, rows []domain.CatalogRow) (int, error) {
	inserted := 0
	for _, r := range rows {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO catalog (`+catalogColumns+`) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (location_code, sku) DO NOTHING
		`, r.Location, r.ProductName, r.SKU, r.Batch, r.Barcode)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert catalog row: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// Delete removes the row for (location, sku) and reports whether it existed.
func (s *CatalogStore) Delete(ctx context.Context, location, sku string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM catalog WHERE location_code = ? AND sku = ?
	`, location, sku)
	if err != nil {
		return false, fmt.Errorf("failed to delete catalog row: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *CatalogStore) query(ctx context.Context, q string, args ...any) ([]domain.CatalogRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer closeRows(rows)

	var out []domain.CatalogRow
	for rows.Next() {
		var r domain.CatalogRow
		if err := rows.Scan(&r.Location, &r.ProductName, &r.SKU, &r.Batch, &r.Barcode); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return out, nil
}
