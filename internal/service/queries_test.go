package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
)

func TestReadsServeCachedValueUntilCommit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.coord.SyncCatalog(ctx, []domain.CatalogRow{{Location: "A1", ProductName: "Bolt M8", SKU: "B-8"}})
	require.NoError(t, err)

	first, err := env.queries.Products(ctx, "A1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A write that bypasses the coordinator does not bump the version, so the
	// cached entry is still served.
	_, err = env.store.Catalog.InsertMissing(ctx, []domain.CatalogRow{{Location: "A1", ProductName: "Nut M8", SKU: "N-8"}})
	require.NoError(t, err)
	cached, err := env.queries.Products(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	_, err = env.coord.SyncCatalog(ctx, []domain.CatalogRow{{Location: "A1", ProductName: "Washer", SKU: "W-1"}})
	require.NoError(t, err)
	fresh, err := env.queries.Products(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, fresh, 3)
}

func TestEmptyReadsAreNotCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rows, err := env.queries.Products(ctx, "A1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = env.store.Catalog.InsertMissing(ctx, []domain.CatalogRow{{Location: "A1", ProductName: "Bolt M8", SKU: "B-8"}})
	require.NoError(t, err)
	rows, err = env.queries.Products(ctx, "A1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSearchQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.coord.SyncCatalog(ctx, []domain.CatalogRow{
		{Location: "A1", ProductName: "Bolt M8", SKU: "B-8", Barcode: "111"},
		{Location: "A2", ProductName: "Bolt M10", SKU: "B-10", Barcode: "112"},
		{Location: "B1", ProductName: "Nut M8", SKU: "N-8", Barcode: "222"},
	})
	require.NoError(t, err)

	products, err := env.queries.SearchProducts(ctx, "  BOLT ", 0)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	locations, err := env.queries.SearchLocations(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, locations)

	byCode, err := env.queries.LookupBarcode(ctx, "222")
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, "N-8", byCode[0].SKU)
}

func TestQueriesRequireInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.queries.Products(ctx, " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.queries.SearchProducts(ctx, "", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.queries.SearchLocations(ctx, "", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.queries.LookupBarcode(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNewQueriesUnknownCodec(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewQueries(env.store.Catalog, env.store.CountLog, env.cache, "xml", 0)
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultSearchLimit, clampLimit(0))
	assert.Equal(t, 10, clampLimit(10))
	assert.Equal(t, maxSearchLimit, clampLimit(10_000))
}

func TestCachedReadsMatchLiveForDistinctQueries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.coord.SaveBatch(ctx, domain.Batch{SessionID: "SESS", Operator: "ana", Items: []domain.BatchItem{
		{Location: "A 1", ProductName: "Bolt M8", SKU: "B-8", Qty: 3},
	}})
	require.NoError(t, err)

	seeded, err := env.queries.History(ctx, domain.HistoryFilter{SessionID: "SESS"})
	require.NoError(t, err)
	require.Len(t, seeded, 1)
	products, err := env.queries.Products(ctx, "A 1")
	require.NoError(t, err)
	require.Len(t, products, 1)

	for _, f := range []domain.HistoryFilter{
		{SessionID: "sess"},
		{Operator: "ana location=", Location: "A 1"},
		{Operator: "ana", Location: "A 1", Limit: 1},
	} {
		live, err := env.store.CountLog.History(ctx, f)
		require.NoError(t, err)
		cached, err := env.queries.History(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, len(live), len(cached), "filter %+v", f)
	}

	live, err := env.store.Catalog.ListByLocation(ctx, "A  1")
	require.NoError(t, err)
	cached, err := env.queries.Products(ctx, "A  1")
	require.NoError(t, err)
	assert.Equal(t, len(live), len(cached))
	assert.Empty(t, cached)
}
