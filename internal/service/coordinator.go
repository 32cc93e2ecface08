package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/stockcount/internal/apperr"
	"github.com/vbonduro/stockcount/internal/domain"
	"github.com/vbonduro/stockcount/internal/lock"
	"github.com/vbonduro/stockcount/internal/metrics"
	"github.com/vbonduro/stockcount/internal/qtyexpr"
	"github.com/vbonduro/stockcount/internal/store"
	"github.com/vbonduro/stockcount/internal/version"
)

// DefaultLockWait bounds how long a mutation waits for the store lock.
const DefaultLockWait = 10 * time.Second

// transactor is the subset of store.Store that Coordinator requires.
type transactor interface {
	RunInTransaction(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Coordinator serializes every mutation behind the store-wide lock and bumps
// the version token once per committed mutation, as the last step before the
// lock is released.
type Coordinator struct {
	store    transactor
	locker   lock.Locker
	version  version.Token
	lockWait time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewCoordinator(
	st transactor,
	locker lock.Locker,
	ver version.Token,
	lockWait time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Coordinator {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Coordinator{
		store:    st,
		locker:   locker,
		version:  ver,
		lockWait: lockWait,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// mutate runs fn in one SQL transaction while holding the store lock. The
// version is bumped only when the transaction commits.
func (c *Coordinator) mutate(ctx context.Context, action string, fn func(tx *store.Tx) error) error {
	release, err := c.locker.Acquire(ctx, c.lockWait)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			c.metrics.LockAttempt("timeout")
			c.logger.Warn("store lock busy", "action", action, "wait", c.lockWait)
			return apperr.Wrap(apperr.CodeBusy, apperr.ErrBusy.Message, err)
		}
		c.metrics.LockAttempt("canceled")
		return fmt.Errorf("failed to acquire store lock: %w", err)
	}
	defer release()
	c.metrics.LockAttempt("acquired")

	if err := c.store.RunInTransaction(ctx, fn); err != nil {
		return err
	}

	// The write is durable here. If the bump fails, readers stay on the
	// previous version until its entries expire.
	v, err := c.version.Bump(ctx)
	if err != nil {
		c.logger.Error("failed to bump store version", "action", action, "error", err)
		return nil
	}
	c.metrics.MutationCommitted(action, v)
	c.logger.Debug("mutation committed", "action", action, "version", v)
	return nil
}

// SaveBatch appends the batch to the count log and adds catalog rows for
// products not yet known at their location, in one critical section.
func (c *Coordinator) SaveBatch(ctx context.Context, b domain.Batch) (*domain.SaveResult, error) {
	if strings.TrimSpace(b.Operator) == "" {
		return nil, apperr.Validation("operator is required")
	}
	if len(b.Items) == 0 {
		return nil, apperr.Validation("batch has no items")
	}
	for i, it := range b.Items {
		if err := validateItem(it); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("item %d: %s", i+1, apperr.Message(err)))
		}
	}

	sessionID := b.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := c.now().UTC()
	entries := make([]domain.CountEntry, 0, len(b.Items))
	catalog := make([]domain.CatalogRow, 0, len(b.Items))
	for _, it := range b.Items {
		rowID := it.RowID
		if rowID == "" {
			rowID = uuid.NewString()
		}
		e := domain.CountEntry{
			SessionID:   sessionID,
			RowID:       rowID,
			Timestamp:   now,
			Operator:    b.Operator,
			Location:    strings.TrimSpace(it.Location),
			ProductName: strings.TrimSpace(it.ProductName),
			SKU:         strings.TrimSpace(it.SKU),
			Batch:       strings.TrimSpace(it.Batch),
			Qty:         it.Qty,
			Formula:     it.Formula,
		}
		entries = append(entries, e)
		catalog = append(catalog, e.Catalog(strings.TrimSpace(it.Barcode)))
	}

	res := &domain.SaveResult{SessionID: sessionID, RowIDs: make([]string, 0, len(entries))}
	err := c.mutate(ctx, "saveStockOpname", func(tx *store.Tx) error {
		if err := tx.CountLog.Append(ctx, entries); err != nil {
			return err
		}
		added, err := tx.Catalog.InsertMissing(ctx, catalog)
		if err != nil {
			return err
		}
		res.CatalogAdded = added
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		res.RowIDs = append(res.RowIDs, e.RowID)
	}
	res.Saved = len(entries)
	c.logger.Info("batch saved", "session_id", sessionID, "operator", b.Operator,
		"saved", res.Saved, "catalog_added", res.CatalogAdded)
	return res, nil
}

func validateItem(it domain.BatchItem) error {
	switch {
	case strings.TrimSpace(it.Location) == "":
		return apperr.Validation("location is required")
	case strings.TrimSpace(it.SKU) == "":
		return apperr.Validation("sku is required")
	case strings.TrimSpace(it.ProductName) == "":
		return apperr.Validation("product name is required")
	case it.Qty < 0:
		return apperr.Validation("quantity must not be negative")
	}
	if err := qtyexpr.CheckFormula(it.Formula, it.Qty); err != nil {
		return apperr.Validation("formula does not match quantity")
	}
	return nil
}

// SyncCatalog adds rows whose (location, sku) is not yet present. Calling it
// again with the same rows changes nothing.
func (c *Coordinator) SyncCatalog(ctx context.Context, rows []domain.CatalogRow) (int, error) {
	for _, r := range rows {
		if strings.TrimSpace(r.Location) == "" || strings.TrimSpace(r.SKU) == "" {
			return 0, apperr.Validation("location and sku are required")
		}
	}
	var added int
	err := c.mutate(ctx, "syncCatalog", func(tx *store.Tx) error {
		n, err := tx.Catalog.InsertMissing(ctx, rows)
		added = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// UpdateEntry edits an entry in place and returns the stored result.
func (c *Coordinator) UpdateEntry(ctx context.Context, rowID string, edit domain.EntryEdit) (*domain.CountEntry, error) {
	if rowID == "" {
		return nil, apperr.Validation("rowId is required")
	}
	if edit.Qty < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	if err := qtyexpr.CheckFormula(edit.Formula, edit.Qty); err != nil {
		return nil, apperr.Validation("formula does not match quantity")
	}

	var updated *domain.CountEntry
	err := c.mutate(ctx, "updateEntry", func(tx *store.Tx) error {
		ok, err := tx.CountLog.Update(ctx, rowID, edit, c.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("entry not found")
		}
		updated, err = tx.CountLog.Get(ctx, rowID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEntry removes an entry and the catalog row for its (location, sku).
// A catalog row that is already gone does not fail the delete.
func (c *Coordinator) DeleteEntry(ctx context.Context, rowID string) (*domain.CountEntry, error) {
	if rowID == "" {
		return nil, apperr.Validation("rowId is required")
	}

	var deleted *domain.CountEntry
	err := c.mutate(ctx, "deleteEntry", func(tx *store.Tx) error {
		e, err := tx.CountLog.Get(ctx, rowID)
		if err != nil {
			return err
		}
		if e == nil {
			return apperr.NotFound("entry not found")
		}
		if _, err := tx.CountLog.Delete(ctx, rowID); err != nil {
			return err
		}
		removed, err := tx.Catalog.Delete(ctx, e.Location, e.SKU)
		if err != nil {
			return err
		}
		if !removed {
			c.logger.Debug("catalog row already absent", "location", e.Location, "sku", e.SKU)
		}
		deleted = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (c *Coordinator) DeleteProduct(ctx context.Context, location, sku string) error {
	if location == "" || sku == "" {
		return apperr.Validation("location and sku are required")
	}
	return c.mutate(ctx, "deleteProduct", func(tx *store.Tx) error {
		ok, err := tx.Catalog.Delete(ctx, location, sku)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("product not found")
		}
		return nil
	})
}
