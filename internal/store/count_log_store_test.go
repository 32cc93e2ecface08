package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/stockcount/internal/domain"
)

func entry(rowID, operator string, qty int, ts time.Time) domain.CountEntry {
	return domain.CountEntry{
		SessionID:   "S1",
		RowID:       rowID,
		Timestamp:   ts,
		Operator:    operator,
		Location:    "A1",
		ProductName: "Bolt",
		SKU:         "B-8",
		Batch:       "L1",
		Qty:         qty,
	}
}

func TestCountLogAppendAndGet(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	e := entry("R1", "ana", 10, ts)
	e.Formula = "5x2=10"
	require.NoError(t, s.Append(ctx, []domain.CountEntry{e}))

	got, err := s.Get(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bolt", got.ProductName)
	assert.Equal(t, 10, got.Qty)
	assert.Equal(t, "5x2=10", got.Formula)
	assert.False(t, got.Edited)
	assert.Nil(t, got.EditTimestamp)
	assert.True(t, got.Timestamp.Equal(ts))
}

func TestCountLogGetMissing(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCountLogDuplicateRowID(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))
	ctx := context.Background()
	ts := time.Now()

	require.NoError(t, s.Append(ctx, []domain.CountEntry{entry("R1", "ana", 1, ts)}))
	assert.Error(t, s.Append(ctx, []domain.CountEntry{entry("R1", "ana", 2, ts)}))
}

func TestCountLogHistoryNewestFirst(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, []domain.CountEntry{
		entry("R1", "ana", 1, base),
		entry("R2", "ben", 2, base.Add(time.Minute)),
		entry("R3", "ana", 3, base.Add(2*time.Minute)),
	}))

	all, err := s.History(ctx, domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "R3", all[0].RowID)
	assert.Equal(t, "R1", all[2].RowID)

	ana, err := s.History(ctx, domain.HistoryFilter{Operator: "ana"})
	require.NoError(t, err)
	assert.Len(t, ana, 2)

	limited, err := s.History(ctx, domain.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestCountLogUpdate(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, []domain.CountEntry{entry("R1", "ana", 10, time.Now())}))

	batch := "L2"
	editedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ok, err := s.Update(ctx, "R1", domain.EntryEdit{Qty: 15, Batch: &batch, Formula: "10+5=15"}, editedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 15, got.Qty)
	assert.Equal(t, "L2", got.Batch)
	assert.Equal(t, "10+5=15", got.Formula)
	assert.True(t, got.Edited)
	require.NotNil(t, got.EditTimestamp)
	assert.True(t, got.EditTimestamp.Equal(editedAt))
}

func TestCountLogUpdateMissing(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))

	ok, err := s.Update(context.Background(), "nope", domain.EntryEdit{Qty: 1}, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountLogDelete(t *testing.T) {
	s := NewCountLogStore(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, []domain.CountEntry{entry("R1", "ana", 10, time.Now())}))

	ok, err := s.Delete(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, "R1")
	require.NoError(t, err)
	assert.False(t, ok)
}
