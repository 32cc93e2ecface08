package service

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/stockcount/internal/cache"
	"github.com/vbonduro/stockcount/internal/domain"
)

const (
	maxSeedPrefix      = 3
	sampledPerNS       = 4
	sampledPrefixLen   = 2
	defaultWarmWorkers = 4
)

// Warmer pre-populates the read cache for likely search prefixes so the
// first keystrokes on a device hit warm entries.
type Warmer struct {
	queries *Queries
	catalog catalogReader
	workers int
	logger  *slog.Logger
}

func NewWarmer(queries *Queries, catalog catalogReader, workers int, logger *slog.Logger) *Warmer {
	if workers <= 0 {
		workers = defaultWarmWorkers
	}
	return &Warmer{queries: queries, catalog: catalog, workers: workers, logger: logger}
}

// Warm issues one cache-populating search per distinct prefix. Seeds yield
// their 1 to 3 character prefixes; a namespace without a seed is sampled
// from one shared catalog scan. Failed searches are logged and skipped.
func (w *Warmer) Warm(ctx context.Context, productSeed, locationSeed string) (domain.WarmResult, error) {
	products := seedPrefixes(productSeed)
	locations := seedPrefixes(locationSeed)

	if products == nil || locations == nil {
		rows, err := w.catalog.All(ctx)
		if err != nil {
			w.logger.Warn("warmup catalog scan failed", "error", err)
		}
		if products == nil {
			names := make([]string, 0, len(rows))
			for _, r := range rows {
				names = append(names, r.ProductName)
			}
			products = samplePrefixes(names)
		}
		if locations == nil {
			codes := make([]string, 0, len(rows))
			for _, r := range rows {
				codes = append(codes, r.Location)
			}
			locations = samplePrefixes(codes)
		}
	}

	var warmedProducts, warmedLocations atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for _, p := range products {
		g.Go(func() error {
			if _, err := w.queries.SearchProducts(gctx, p, 0); err != nil {
				w.logger.Warn("warmup search failed", "namespace", "products", "prefix", p, "error", err)
				return nil
			}
			warmedProducts.Add(1)
			return nil
		})
	}
	for _, p := range locations {
		g.Go(func() error {
			if _, err := w.queries.SearchLocations(gctx, p, 0); err != nil {
				w.logger.Warn("warmup search failed", "namespace", "locations", "prefix", p, "error", err)
				return nil
			}
			warmedLocations.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := domain.WarmResult{Products: int(warmedProducts.Load()), Locations: int(warmedLocations.Load())}
	w.logger.Info("cache warmed", "products", res.Products, "locations", res.Locations)
	return res, nil
}

// seedPrefixes returns the distinct 1..3 rune prefixes of seed, or nil when
// seed is blank.
func seedPrefixes(seed string) []string {
	r := []rune(cache.NormalizeQuery(seed))
	if len(r) == 0 {
		return nil
	}
	out := make([]string, 0, maxSeedPrefix)
	seen := make(map[string]struct{}, maxSeedPrefix)
	for n := 1; n <= maxSeedPrefix && n <= len(r); n++ {
		out = appendUnique(out, seen, string(r[:n]))
	}
	return out
}

// samplePrefixes picks up to sampledPerNS distinct two-rune prefixes from
// values, in the order encountered. It never returns nil.
func samplePrefixes(values []string) []string {
	out := make([]string, 0, sampledPerNS)
	seen := make(map[string]struct{}, sampledPerNS)
	for _, v := range values {
		if len(out) == sampledPerNS {
			break
		}
		r := []rune(cache.NormalizeQuery(v))
		if len(r) == 0 {
			continue
		}
		if len(r) > sampledPrefixLen {
			r = r[:sampledPrefixLen]
		}
		out = appendUnique(out, seen, string(r))
	}
	return out
}

func appendUnique(out []string, seen map[string]struct{}, s string) []string {
	if _, ok := seen[s]; ok {
		return out
	}
	seen[s] = struct{}{}
	return append(out, s)
}
