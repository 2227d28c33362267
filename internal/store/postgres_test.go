package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqb/qantagen/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetEntry_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, title, article_text, unresolved, fetched_at FROM cache_entries`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	e, err := s.GetEntry(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEntry_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	fetched := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"key", "title", "article_text", "unresolved", "fetched_at"}).
		AddRow("nile", "Nile", "The Nile is a river.", false, fetched)

	mock.ExpectQuery(`SELECT key, title, article_text, unresolved, fetched_at FROM cache_entries`).
		WithArgs("nile").
		WillReturnRows(rows)

	e, err := s.GetEntry(context.Background(), "nile")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "Nile", e.Title)
	assert.False(t, e.Unresolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutEntry_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("nile", "Nile", "The Nile is a river.", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutEntry(context.Background(), model.CacheEntry{
		Key:         "nile",
		Title:       "Nile",
		ArticleText: "The Nile is a river.",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteEntry(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM cache_entries WHERE key = \$1`).
		WithArgs("nile").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.DeleteEntry(context.Background(), "nile")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PurgeUnresolved(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM cache_entries WHERE unresolved`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.PurgeUnresolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EntryStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"count", "unresolved"}).AddRow(int64(10), int64(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER`).
		WillReturnRows(rows)

	stats, err := s.EntryStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(3), stats.Unresolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "packets/nats18", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "packets/nats18")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing-run", &model.RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
