// Package version holds the store's version token: a counter bumped exactly
// once per committed mutation and folded into every read-cache key, so a
// commit makes all earlier cache entries unreachable.
package version

import "context"

// Token is a monotonically increasing store version.
type Token interface {
	// Current returns the latest committed version.
	Current(ctx context.Context) (uint64, error)
	// Bump advances the version and returns the new value.
	Bump(ctx context.Context) (uint64, error)
}
