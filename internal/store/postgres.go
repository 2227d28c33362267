package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/db"
	"github.com/openqb/qantagen/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot cache path.
var preparedStatements = map[string]string{
	"get_entry": `SELECT key, title, article_text, unresolved, fetched_at FROM cache_entries WHERE key = $1`,
	"put_entry": `INSERT INTO cache_entries (key, title, article_text, unresolved, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
		  title = EXCLUDED.title,
		  article_text = EXCLUDED.article_text,
		  unresolved = EXCLUDED.unresolved,
		  fetched_at = EXCLUDED.fetched_at`,
	"delete_entry": `DELETE FROM cache_entries WHERE key = $1`,
	"insert_run":   `INSERT INTO runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"finish_run":   `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":      `SELECT id, source, status, result, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key          TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	article_text TEXT NOT NULL DEFAULT '',
	unresolved   BOOLEAN NOT NULL DEFAULT FALSE,
	fetched_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_unresolved ON cache_entries(unresolved);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, title, article_text, unresolved, fetched_at FROM cache_entries WHERE key = $1`,
		key,
	)

	var e model.CacheEntry
	err := row.Scan(&e.Key, &e.Title, &e.ArticleText, &e.Unresolved, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrCacheCorrupt, "postgres: scan entry %s: %v", key, err)
	}
	return &e, nil
}

func (s *PostgresStore) PutEntry(ctx context.Context, entry model.CacheEntry) error {
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, title, article_text, unresolved, fetched_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
		   title = EXCLUDED.title,
		   article_text = EXCLUDED.article_text,
		   unresolved = EXCLUDED.unresolved,
		   fetched_at = EXCLUDED.fetched_at`,
		entry.Key, entry.Title, entry.ArticleText, entry.Unresolved, entry.FetchedAt,
	)
	return eris.Wrapf(err, "postgres: put entry %s", entry.Key)
}

func (s *PostgresStore) PutEntries(ctx context.Context, entries []model.CacheEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		fetchedAt := e.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = now
		}
		rows = append(rows, []any{e.Key, e.Title, e.ArticleText, e.Unresolved, fetchedAt})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "cache_entries",
		Columns:      []string{"key", "title", "article_text", "unresolved", "fetched_at"},
		ConflictKeys: []string{"key"},
	}, rows)
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete entry %s", key)
}

func (s *PostgresStore) PurgeUnresolved(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE unresolved`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge unresolved")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) EntryStats(ctx context.Context) (*CacheStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE unresolved) FROM cache_entries`,
	)

	var stats CacheStats
	if err := row.Scan(&stats.Total, &stats.Unresolved); err != nil {
		return nil, eris.Wrap(err, "postgres: entry stats")
	}
	return &stats, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, source, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return s.finishRun(ctx, runID, model.RunStatusComplete, result)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, &model.RunResult{Error: message})
}

func (s *PostgresStore) finishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)

	r, err := scanRunRow(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRunRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanRunRow(row scannable) (*model.Run, error) {
	var r model.Run
	var resultJSON *string

	err := row.Scan(&r.ID, &r.Source, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, err
	}

	if resultJSON != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(*resultJSON), r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal result")
		}
	}
	return &r, nil
}
