package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/openqb/qantagen/internal/pipeline"
	"github.com/openqb/qantagen/internal/store"
	"github.com/openqb/qantagen/pkg/wiki"
)

// convertEnv holds the initialized store and pipeline shared by the
// convert, batch, and serve commands.
type convertEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *convertEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "qantagen.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "create data directory %s", dir)
			}
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initWiki() wiki.Client {
	return wiki.NewClient(
		wiki.WithBaseURL(cfg.Wiki.BaseURL),
		wiki.WithUserAgent(cfg.Wiki.UserAgent),
		wiki.WithTimeout(time.Duration(cfg.Wiki.TimeoutSecs)*time.Second),
		wiki.WithSearchLimit(cfg.Wiki.SearchLimit),
		wiki.WithRateLimit(cfg.Wiki.RateRPS, cfg.Wiki.RateBurst),
		wiki.WithRetry(cfg.Resolve.MaxRetries, cfg.Resolve.BackoffMS),
	)
}

// initPipeline sets up the store and wiki client and builds the
// conversion pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, opts ...pipeline.Option) (*convertEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	p := pipeline.New(cfg, st, initWiki(), opts...)

	return &convertEnv{Store: st, Pipeline: p}, nil
}
