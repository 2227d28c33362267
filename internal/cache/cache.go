// Package cache provides the resolution cache consulted before any remote
// wiki lookup: a volatile in-memory tier layered over the durable store.
package cache

import (
	"context"

	"github.com/openqb/qantagen/internal/model"
)

// Cache is a keyed store of resolution outcomes, positive and negative.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	Set(ctx context.Context, entry model.CacheEntry) error
	Delete(ctx context.Context, key string) error
	// Flush drops volatile contents. Durable tiers treat it as a no-op;
	// persistent entries are removed by the purge commands instead.
	Flush(ctx context.Context) error
}
