package cache

import (
	"context"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/store"
)

// StoreCache adapts the durable store to the Cache interface so it can sit
// under the memory tier.
type StoreCache struct {
	store store.Store
}

// NewStoreCache wraps a store as the durable cache tier.
func NewStoreCache(s store.Store) *StoreCache {
	return &StoreCache{store: s}
}

func (c *StoreCache) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	return c.store.GetEntry(ctx, key)
}

func (c *StoreCache) Set(ctx context.Context, entry model.CacheEntry) error {
	return c.store.PutEntry(ctx, entry)
}

func (c *StoreCache) Delete(ctx context.Context, key string) error {
	return c.store.DeleteEntry(ctx, key)
}

func (c *StoreCache) Flush(_ context.Context) error {
	return nil
}
