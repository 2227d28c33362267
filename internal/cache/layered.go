package cache

import (
	"context"
	"time"

	"github.com/openqb/qantagen/internal/model"
)

// Layered checks the memory tier first and falls back to the durable tier,
// promoting durable hits into memory.
type Layered struct {
	memory  Cache
	durable Cache
}

// NewLayered builds a layered cache with a fresh memory tier over the given
// durable tier.
func NewLayered(memoryTTL, cleanupInterval time.Duration, durable Cache) *Layered {
	return &Layered{
		memory:  NewMemory(memoryTTL, cleanupInterval),
		durable: durable,
	}
}

func (c *Layered) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	entry, err := c.memory.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}

	entry, err = c.durable.Get(ctx, key)
	if err != nil || entry == nil {
		return nil, err
	}

	// Promote so the next lookup skips the durable tier.
	if err := c.memory.Set(ctx, *entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Layered) Set(ctx context.Context, entry model.CacheEntry) error {
	if err := c.memory.Set(ctx, entry); err != nil {
		return err
	}
	return c.durable.Set(ctx, entry)
}

func (c *Layered) Delete(ctx context.Context, key string) error {
	if err := c.memory.Delete(ctx, key); err != nil {
		return err
	}
	return c.durable.Delete(ctx, key)
}

func (c *Layered) Flush(ctx context.Context) error {
	if err := c.memory.Flush(ctx); err != nil {
		return err
	}
	return c.durable.Flush(ctx)
}
