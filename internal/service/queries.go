package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/cache"
	"github.com/vbonduro/stockcount/internal/cache/codec"
	"github.com/vbonduro/stockcount/internal/domain"
)

// Read operation names. They double as read-cache key prefixes and TTL keys.
const (
	OpGetProducts     = "getProducts"
	OpGetHistory      = "getHistory"
	OpSearchProducts  = "searchProducts"
	OpSearchLocations = "searchLocations"
	OpLookupBarcode   = "lookupBarcode"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

// catalogReader is the subset of store.CatalogStore that Queries requires.
type catalogReader interface {
	ListByLocation(ctx context.Context, location string) ([]domain.CatalogRow, error)
	All(ctx context.Context) ([]domain.CatalogRow, error)
	Search(ctx context.Context, query string, limit int) ([]domain.CatalogRow, error)
	LookupBarcode(ctx context.Context, barcode string) ([]domain.CatalogRow, error)
	SearchLocations(ctx context.Context, query string, limit int) ([]string, error)
}

// historyReader is the subset of store.CountLogStore that Queries requires.
type historyReader interface {
	History(ctx context.Context, f domain.HistoryFilter) ([]domain.CountEntry, error)
}

// Queries serves reads through the versioned read cache. Reads never take
// the store lock.
type Queries struct {
	catalog catalogReader
	history historyReader
	cache   *cache.Cache

	rows    codec.Codec[[]domain.CatalogRow]
	entries codec.Codec[[]domain.CountEntry]
	names   codec.Codec[[]string]
}

// NewQueries builds the read service. codecName selects the cache encoding
// (msgpack, cbor or json); maxEntryBytes > 0 rejects larger cached payloads.
func NewQueries(catalog catalogReader, history historyReader, c *cache.Cache, codecName string, maxEntryBytes int) (*Queries, error) {
	rows, err := codec.ByName[[]domain.CatalogRow](codecName, maxEntryBytes)
	if err != nil {
		return nil, err
	}
	entries, err := codec.ByName[[]domain.CountEntry](codecName, maxEntryBytes)
	if err != nil {
		return nil, err
	}
	names, err := codec.ByName[[]string](codecName, maxEntryBytes)
	if err != nil {
		return nil, err
	}
	return &Queries{
		catalog: catalog,
		history: history,
		cache:   c,
		rows:    rows,
		entries: entries,
		names:   names,
	}, nil
}

func isEmpty[T any](v []T) bool { return len(v) == 0 }

type search struct {
	Q     string `json:"q"`
	Limit int    `json:"limit"`
}

// queryKey encodes a multi-field query for the read cache. Field values are
// kept exactly as the live read receives them.
func queryKey(v any) string {
	// Values are only plain string and int fields, which always marshal.
	b, _ := json.Marshal(v)
	return string(b)
}

// Products lists the catalog rows recorded for a location.
func (q *Queries) Products(ctx context.Context, location string) ([]domain.CatalogRow, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, apperr.Validation("location is required")
	}
	return cache.Read(ctx, q.cache, q.rows, OpGetProducts, location, isEmpty[domain.CatalogRow],
		func(ctx context.Context) ([]domain.CatalogRow, error) {
			return q.catalog.ListByLocation(ctx, location)
		})
}

// History returns count-log entries matching f, newest first.
func (q *Queries) History(ctx context.Context, f domain.HistoryFilter) ([]domain.CountEntry, error) {
	return cache.Read(ctx, q.cache, q.entries, OpGetHistory, queryKey(f), isEmpty[domain.CountEntry],
		func(ctx context.Context) ([]domain.CountEntry, error) {
			return q.history.History(ctx, f)
		})
}

// SearchProducts matches name, SKU or barcode.
func (q *Queries) SearchProducts(ctx context.Context, query string, limit int) ([]domain.CatalogRow, error) {
	query = cache.NormalizeQuery(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	limit = clampLimit(limit)
	return cache.Read(ctx, q.cache, q.rows, OpSearchProducts, queryKey(search{query, limit}), isEmpty[domain.CatalogRow],
		func(ctx context.Context) ([]domain.CatalogRow, error) {
			return q.catalog.Search(ctx, query, limit)
		})
}

// SearchLocations returns location codes starting with query.
func (q *Queries) SearchLocations(ctx context.Context, query string, limit int) ([]string, error) {
	query = cache.NormalizeQuery(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	limit = clampLimit(limit)
	return cache.Read(ctx, q.cache, q.names, OpSearchLocations, queryKey(search{query, limit}), isEmpty[string],
		func(ctx context.Context) ([]string, error) {
			return q.catalog.SearchLocations(ctx, query, limit)
		})
}

func (q *Queries) LookupBarcode(ctx context.Context, barcode string) ([]domain.CatalogRow, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperr.Validation("barcode is required")
	}
	return cache.Read(ctx, q.cache, q.rows, OpLookupBarcode, barcode, isEmpty[domain.CatalogRow],
		func(ctx context.Context) ([]domain.CatalogRow, error) {
			return q.catalog.LookupBarcode(ctx, barcode)
		})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}
