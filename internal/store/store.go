package store

import (
	"context"

	"github.com/openqb/qantagen/internal/model"
)

// CacheStats summarizes the durable resolution cache.
type CacheStats struct {
	Total      int64 `json:"total"`
	Unresolved int64 `json:"unresolved"`
}

// RunFilter specifies criteria for listing conversion runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface: the durable resolution cache and
// conversion run bookkeeping.
type Store interface {
	// Resolution cache. GetEntry returns (nil, nil) on a miss; a row that
	// cannot be read back wraps model.ErrCacheCorrupt so callers can treat
	// it as a miss and repair.
	GetEntry(ctx context.Context, key string) (*model.CacheEntry, error)
	PutEntry(ctx context.Context, entry model.CacheEntry) error
	PutEntries(ctx context.Context, entries []model.CacheEntry) (int64, error)
	DeleteEntry(ctx context.Context, key string) error
	PurgeUnresolved(ctx context.Context) (int, error)
	EntryStats(ctx context.Context) (*CacheStats, error)

	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
