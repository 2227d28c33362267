package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqb/qantagen/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Cache entries ---

func TestSQLite_Entry_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := st.PutEntry(ctx, model.CacheEntry{
		Key:         "johann sebastian bach",
		Title:       "Johann Sebastian Bach",
		ArticleText: "Johann Sebastian Bach was a German composer.",
		FetchedAt:   fetched,
	})
	require.NoError(t, err)

	e, err := st.GetEntry(ctx, "johann sebastian bach")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Johann Sebastian Bach", e.Title)
	assert.Equal(t, "Johann Sebastian Bach was a German composer.", e.ArticleText)
	assert.False(t, e.Unresolved)
	assert.True(t, e.FetchedAt.Equal(fetched))
}

func TestSQLite_Entry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	e, err := st.GetEntry(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSQLite_Entry_NegativeEntry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.PutEntry(ctx, model.CacheEntry{Key: "zxqj gibberish", Unresolved: true})
	require.NoError(t, err)

	e, err := st.GetEntry(ctx, "zxqj gibberish")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Unresolved)
	assert.Empty(t, e.Title)
	assert.False(t, e.FetchedAt.IsZero())
}

func TestSQLite_Entry_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "nile", Unresolved: true}))
	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{
		Key:         "nile",
		Title:       "Nile",
		ArticleText: "The Nile is a river in Africa.",
	}))

	e, err := st.GetEntry(ctx, "nile")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.False(t, e.Unresolved)
	assert.Equal(t, "Nile", e.Title)
}

func TestSQLite_Entry_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "nile", Title: "Nile"}))
	require.NoError(t, st.DeleteEntry(ctx, "nile"))

	e, err := st.GetEntry(ctx, "nile")
	require.NoError(t, err)
	assert.Nil(t, e)

	// Deleting a missing key is not an error.
	assert.NoError(t, st.DeleteEntry(ctx, "nile"))
}

func TestSQLite_PutEntries_Bulk(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entries := []model.CacheEntry{
		{Key: "nile", Title: "Nile"},
		{Key: "amazon river", Title: "Amazon River"},
		{Key: "zxqj", Unresolved: true},
	}
	n, err := st.PutEntries(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	e, err := st.GetEntry(ctx, "amazon river")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Amazon River", e.Title)

	// Re-import with changed titles upserts in place.
	n, err = st.PutEntries(ctx, []model.CacheEntry{{Key: "zxqj", Title: "Zxqj", Unresolved: false}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e, err = st.GetEntry(ctx, "zxqj")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.False(t, e.Unresolved)

	stats, err := st.EntryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
}

func TestSQLite_PutEntries_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.PutEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSQLite_PurgeUnresolved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "nile", Title: "Nile"}))
	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "zxqj", Unresolved: true}))
	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "qwerty", Unresolved: true}))

	n, err := st.PurgeUnresolved(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Positive entries survive.
	e, err := st.GetEntry(ctx, "nile")
	require.NoError(t, err)
	assert.NotNil(t, e)

	e, err = st.GetEntry(ctx, "zxqj")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSQLite_EntryStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	stats, err := st.EntryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Total)
	assert.Equal(t, int64(0), stats.Unresolved)

	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "nile", Title: "Nile"}))
	require.NoError(t, st.PutEntry(ctx, model.CacheEntry{Key: "zxqj", Unresolved: true}))

	stats, err = st.EntryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Unresolved)
}

// --- Runs ---

func TestSQLite_Run_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "packets/2018_nationals")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "packets/2018_nationals", got.Source)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Result)
}

func TestSQLite_Run_Complete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "packets/round1.docx")
	require.NoError(t, err)

	result := &model.RunResult{
		Questions:   20,
		Resolved:    17,
		Unresolved:  3,
		NeedsReview: 2,
		RemoteCalls: 12,
	}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 20, got.Result.Questions)
	assert.Equal(t, 17, got.Result.Resolved)
	assert.Equal(t, 2, got.Result.NeedsReview)
}

func TestSQLite_Run_Fail(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "packets/bad.docx")
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, run.ID, "parse: malformed document"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, "parse: malformed document", got.Result.Error)
}

func TestSQLite_Run_FinishMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.CompleteRun(ctx, "no-such-run", &model.RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = st.FailRun(ctx, "no-such-run", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Run_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Run_List(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r1, err := st.CreateRun(ctx, "packets/a")
	require.NoError(t, err)
	r2, err := st.CreateRun(ctx, "packets/b")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "packets/c")
	require.NoError(t, err)

	require.NoError(t, st.CompleteRun(ctx, r1.ID, &model.RunResult{Questions: 5}))
	require.NoError(t, st.FailRun(ctx, r2.ID, "boom"))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, r2.ID, failed[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
