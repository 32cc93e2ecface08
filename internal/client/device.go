package client

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/stockcount/internal/client/localcache"
	"github.com/vbonduro/stockcount/internal/client/optimistic"
	"github.com/vbonduro/stockcount/internal/domain"
	"github.com/vbonduro/stockcount/internal/qtyexpr"
)

// Local cache namespaces.
const (
	HistoryPrefix  = "history:"
	ProductsPrefix = "products:"
)

type (
	historyCell  = optimistic.Cell[[]domain.CountEntry]
	productsCell = optimistic.Cell[[]domain.CatalogRow]
)

// Device is the client facade a field app drives: cached views that render
// immediately and mutations that show their effect before the server
// confirms them.
type Device struct {
	api      *API
	store    *localcache.Store
	notifier optimistic.Notifier
	now      func() time.Time

	mu       sync.Mutex
	history  map[string]*historyCell
	products map[string]*productsCell
}

func NewDevice(api *API, store *localcache.Store, notifier optimistic.Notifier) *Device {
	return &Device{
		api:      api,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		history:  make(map[string]*historyCell),
		products: make(map[string]*productsCell),
	}
}

func (d *Device) historyCell(operator string) *historyCell {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := HistoryPrefix + operator
	c, ok := d.history[key]
	if !ok {
		c = optimistic.NewCell[[]domain.CountEntry](d.store, key)
		d.history[key] = c
	}
	return c
}

func (d *Device) productsCell(location string) *productsCell {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := ProductsPrefix + location
	c, ok := d.products[key]
	if !ok {
		c = optimistic.NewCell[[]domain.CatalogRow](d.store, key)
		d.products[key] = c
	}
	return c
}

// InvalidatePrefix drops cached views under prefix from memory and disk.
func (d *Device) InvalidatePrefix(prefix string) {
	if _, err := d.store.DeletePrefix(prefix); err != nil {
		slog.Warn("failed to invalidate local cache", "prefix", prefix, "error", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, c := range d.history {
		if strings.HasPrefix(k, prefix) {
			c.Forget()
		}
	}
	for k, c := range d.products {
		if strings.HasPrefix(k, prefix) {
			c.Forget()
		}
	}
}

// History renders operator's count history, cached first, then live.
func (d *Device) History(ctx context.Context, operator string, render optimistic.Render[[]domain.CountEntry], onError func(error)) *optimistic.Refresh {
	return optimistic.Load(ctx, d.historyCell(operator), func(ctx context.Context) ([]domain.CountEntry, error) {
		return d.api.History(ctx, domain.HistoryFilter{Operator: operator})
	}, render, onError)
}

// Products renders the catalog rows of a location, cached first, then live.
func (d *Device) Products(ctx context.Context, location string, render optimistic.Render[[]domain.CatalogRow], onError func(error)) *optimistic.Refresh {
	return optimistic.Load(ctx, d.productsCell(location), func(ctx context.Context) ([]domain.CatalogRow, error) {
		return d.api.Products(ctx, location)
	}, render, onError)
}

// DeleteEntry removes the row from operator's history view at once. A
// rejected delete puts the row back where it was.
func (d *Device) DeleteEntry(ctx context.Context, operator, rowID string) *optimistic.Pending {
	return optimistic.Run(ctx, d.historyCell(operator), optimistic.Action[[]domain.CountEntry]{
		Name: "deleteEntry",
		Apply: func(rows []domain.CountEntry) []domain.CountEntry {
			return slices.DeleteFunc(slices.Clone(rows), func(e domain.CountEntry) bool { return e.RowID == rowID })
		},
		Compensate: func(current, snapshot []domain.CountEntry) []domain.CountEntry {
			return restoreRow(current, snapshot, rowID)
		},
		Remote: func(ctx context.Context) error {
			return d.api.DeleteEntry(ctx, rowID)
		},
		Invalidates: []string{ProductsPrefix},
	}, d, d.notifier)
}

// UpdateEntry commits the typed quantity (a number or expression) for a
// row. Invalid input commits as zero, as the entry field would.
func (d *Device) UpdateEntry(ctx context.Context, operator, rowID, qtyInput string, batch *string) *optimistic.Pending {
	committed := qtyexpr.Commit(qtyInput)
	edit := domain.EntryEdit{Qty: committed.Qty, Batch: batch, Formula: committed.Formula}
	editedAt := d.now().UTC()

	return optimistic.Run(ctx, d.historyCell(operator), optimistic.Action[[]domain.CountEntry]{
		Name: "updateEntry",
		Apply: func(rows []domain.CountEntry) []domain.CountEntry {
			out := slices.Clone(rows)
			for i := range out {
				if out[i].RowID != rowID {
					continue
				}
				out[i].Qty = edit.Qty
				out[i].Formula = edit.Formula
				if batch != nil {
					out[i].Batch = *batch
				}
				out[i].Edited = true
				out[i].EditTimestamp = &editedAt
			}
			return out
		},
		Compensate: func(current, snapshot []domain.CountEntry) []domain.CountEntry {
			return restoreRow(current, snapshot, rowID)
		},
		Remote: func(ctx context.Context) error {
			_, err := d.api.UpdateEntry(ctx, rowID, edit)
			return err
		},
	}, d, d.notifier)
}

// SubmitBatch shows the batch at the top of the operator's history before
// the server has stored it. Row and session IDs are assigned here so the
// rows can be edited or deleted before the server confirms them.
func (d *Device) SubmitBatch(ctx context.Context, b domain.Batch) *optimistic.Pending {
	if b.SessionID == "" {
		b.SessionID = uuid.NewString()
	}
	b.Items = slices.Clone(b.Items)
	now := d.now().UTC()
	entries := make([]domain.CountEntry, 0, len(b.Items))
	ids := make(map[string]struct{}, len(b.Items))
	for i := range b.Items {
		if b.Items[i].RowID == "" {
			b.Items[i].RowID = uuid.NewString()
		}
		it := b.Items[i]
		ids[it.RowID] = struct{}{}
		entries = append(entries, domain.CountEntry{
			SessionID:   b.SessionID,
			RowID:       it.RowID,
			Timestamp:   now,
			Operator:    b.Operator,
			Location:    it.Location,
			ProductName: it.ProductName,
			SKU:         it.SKU,
			Batch:       it.Batch,
			Qty:         it.Qty,
			Formula:     it.Formula,
		})
	}
	// History is newest first.
	slices.Reverse(entries)

	return optimistic.Run(ctx, d.historyCell(b.Operator), optimistic.Action[[]domain.CountEntry]{
		Name: "saveStockOpname",
		Apply: func(rows []domain.CountEntry) []domain.CountEntry {
			return append(slices.Clone(entries), rows...)
		},
		Compensate: func(current, _ []domain.CountEntry) []domain.CountEntry {
			return slices.DeleteFunc(slices.Clone(current), func(e domain.CountEntry) bool {
				_, ok := ids[e.RowID]
				return ok
			})
		},
		Remote: func(ctx context.Context) error {
			_, err := d.api.SaveBatch(ctx, b)
			return err
		},
		Invalidates: []string{ProductsPrefix},
	}, d, d.notifier)
}

// Warmup asks the server to prefill its read cache. It runs in the
// background and is not canceled with ctx; the returned channel closes when
// it finishes.
func (d *Device) Warmup(ctx context.Context, productSeed, locationSeed string) <-chan struct{} {
	done := make(chan struct{})
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		res, err := d.api.Warmup(bg, productSeed, locationSeed)
		if err != nil {
			slog.Debug("cache warmup failed", "error", err)
			return
		}
		slog.Debug("cache warmed", "products", res.Products, "locations", res.Locations)
	}()
	return done
}

// restoreRow puts rowID's snapshot version back into current, keeping every
// other row of current as is. A row absent from the snapshot is removed.
func restoreRow(current, snapshot []domain.CountEntry, rowID string) []domain.CountEntry {
	si := slices.IndexFunc(snapshot, func(e domain.CountEntry) bool { return e.RowID == rowID })
	out := slices.DeleteFunc(slices.Clone(current), func(e domain.CountEntry) bool { return e.RowID == rowID })
	if si < 0 {
		return out
	}
	at := min(si, len(out))
	return slices.Insert(out, at, snapshot[si])
}
