// Package cache holds the session-scoped detail store: a read-through cache
// of full per-property records, keyed by property id. Entries have no TTL;
// they are removed only by explicit invalidation, pruning against the current
// property list, or a whole-session reset on logout.
package cache

import (
	"context"

	"sigap-dashboard/internal/models"
)

// Store is the detail-store contract. Get is a pure lookup with no network
// access; Put is an idempotent overwrite with last-write-wins semantics for
// concurrent writers of the same id.
type Store interface {
	Get(ctx context.Context, id string) (models.PropertyDetail, bool)
	Put(ctx context.Context, id string, detail models.PropertyDetail) error
	Invalidate(ctx context.Context, id string) error
	Has(ctx context.Context, id string) bool
	Keys(ctx context.Context) []string
	// Snapshot returns a consistent view of every cached entry. Derived
	// engines must run against a snapshot, never the live store mid-fan-out.
	Snapshot(ctx context.Context) map[string]models.PropertyDetail
	Reset(ctx context.Context) error
}

// Prune removes every entry whose id is not in the live id set, so the store
// never resurrects details for deleted properties.
func Prune(ctx context.Context, s Store, liveIDs map[string]bool) {
	for _, id := range s.Keys(ctx) {
		if !liveIDs[id] {
			_ = s.Invalidate(ctx, id)
		}
	}
}
