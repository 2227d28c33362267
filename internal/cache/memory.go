package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/openqb/qantagen/internal/model"
)

// Memory is the in-process cache tier. Entries expire after the default TTL
// so long batch runs pick up purges and re-resolutions eventually.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates a memory cache with the given default TTL and cleanup
// interval.
func NewMemory(defaultTTL, cleanupInterval time.Duration) *Memory {
	return &Memory{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (m *Memory) Get(_ context.Context, key string) (*model.CacheEntry, error) {
	if val, found := m.cache.Get(key); found {
		entry := val.(model.CacheEntry)
		return &entry, nil
	}
	return nil, nil
}

func (m *Memory) Set(_ context.Context, entry model.CacheEntry) error {
	m.cache.Set(entry.Key, entry, gocache.DefaultExpiration)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *Memory) Flush(_ context.Context) error {
	m.cache.Flush()
	return nil
}
