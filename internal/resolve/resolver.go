// Package resolve maps extracted answer phrases to canonical wiki titles.
// Outcomes are cached positive or negative, so each unique phrase costs at
// most one remote lookup per process lifetime.
package resolve

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openqb/qantagen/internal/cache"
	"github.com/openqb/qantagen/internal/config"
	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/textnorm"
	"github.com/openqb/qantagen/pkg/wiki"
)

// Resolver canonicalizes answer phrases against the wiki search API,
// consulting the layered cache first. Safe for concurrent use; concurrent
// calls for the same normalized key share one in-flight lookup.
type Resolver struct {
	wiki  wiki.Client
	cache cache.Cache
	cfg   config.ResolveConfig

	group       singleflight.Group
	remoteCalls atomic.Int64
}

// NewResolver creates a resolver over the given search client and cache.
func NewResolver(client wiki.Client, c cache.Cache, cfg config.ResolveConfig) *Resolver {
	return &Resolver{
		wiki:  client,
		cache: c,
		cfg:   cfg,
	}
}

// RemoteCalls reports how many remote search lookups this resolver has
// issued. Cache hits and shared single-flight waits do not count.
func (r *Resolver) RemoteCalls() int64 {
	return r.remoteCalls.Load()
}

// Resolve maps one answer phrase to a canonical title.
//
// Unresolved is a terminal outcome, not a failure: no search results,
// remote errors after the client's retries, and lookup timeouts all write
// a negative cache entry and return SourceUnresolved with a nil error
// (timeouts additionally carry model.ErrResolutionTimeout so callers can
// note them). A non-nil error means infrastructure trouble, a cache store
// that cannot be read or written, and should abort the run.
func (r *Resolver) Resolve(ctx context.Context, phrase string) (model.Resolution, error) {
	key := textnorm.Key(phrase)
	if key == "" || phrase == model.AnswerNeedsReview {
		return model.Resolution{Source: model.SourceUnresolved}, nil
	}

	if entry, err := r.lookup(ctx, key); err != nil {
		return model.Resolution{}, err
	} else if entry != nil {
		return entry.Resolution(), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolveRemote(ctx, key, phrase)
	})
	res, _ := v.(model.Resolution)
	return res, err
}

// lookup reads the cache, treating a corrupt row as a miss: the row is
// deleted and the phrase falls through to remote resolution.
func (r *Resolver) lookup(ctx context.Context, key string) (*model.CacheEntry, error) {
	entry, err := r.cache.Get(ctx, key)
	if err == nil {
		return entry, nil
	}
	if errors.Is(err, model.ErrCacheCorrupt) {
		zap.L().Warn("discarding corrupt cache entry",
			zap.String("key", key),
			zap.Error(err))
		if delErr := r.cache.Delete(ctx, key); delErr != nil {
			return nil, eris.Wrapf(delErr, "resolve: repair entry %s", key)
		}
		return nil, nil
	}
	return nil, eris.Wrapf(err, "resolve: read cache %s", key)
}

// resolveRemote performs the remote search plus optional extract fetch and
// writes the outcome back to the cache. Runs inside the single-flight
// group, one execution per key.
func (r *Resolver) resolveRemote(ctx context.Context, key, phrase string) (model.Resolution, error) {
	// Re-check under the flight: another caller may have finished and
	// written this key between our miss and now.
	if entry, err := r.lookup(ctx, key); err != nil {
		return model.Resolution{}, err
	} else if entry != nil {
		return entry.Resolution(), nil
	}

	if err := ctx.Err(); err != nil {
		// Run shutting down. Leave the key uncached so a later run
		// gives it a real attempt.
		return model.Resolution{Source: model.SourceUnresolved}, err
	}

	query := cleanQuery(phrase)
	r.remoteCalls.Add(1)
	results, err := r.wiki.Search(ctx, query)
	if err != nil {
		return r.searchFailed(ctx, key, query, err)
	}
	title, ok := r.pickTitle(key, results)
	if !ok {
		zap.L().Debug("no acceptable search result",
			zap.String("key", key),
			zap.Int("candidates", len(results)))
		return r.markUnresolved(ctx, key)
	}

	entry := model.CacheEntry{Key: key, Title: title, FetchedAt: time.Now().UTC()}
	if r.cfg.FetchArticles {
		text, err := r.wiki.Extract(ctx, title)
		if err != nil {
			// The title already resolved; losing the extract is not
			// worth a negative entry.
			zap.L().Warn("article extract failed",
				zap.String("title", title),
				zap.Error(err))
		}
		entry.ArticleText = text
	}
	if err := r.cache.Set(ctx, entry); err != nil {
		return model.Resolution{}, eris.Wrapf(err, "resolve: cache %s", key)
	}
	return model.Resolution{Title: entry.Title, ArticleText: entry.ArticleText, Source: model.SourceRemote}, nil
}

// searchFailed classifies a remote failure. Cancellation propagates
// uncached; a deadline or any other exhausted-retries error is a
// definitive miss and is cached negatively.
func (r *Resolver) searchFailed(ctx context.Context, key, query string, err error) (model.Resolution, error) {
	if errors.Is(err, context.Canceled) {
		return model.Resolution{Source: model.SourceUnresolved}, err
	}
	timedOut := errors.Is(err, context.DeadlineExceeded)
	zap.L().Warn("remote resolution failed",
		zap.String("key", key),
		zap.String("query", query),
		zap.Bool("timeout", timedOut),
		zap.Error(err))
	res, cacheErr := r.markUnresolved(ctx, key)
	if cacheErr != nil {
		return res, cacheErr
	}
	if timedOut {
		return res, model.ErrResolutionTimeout
	}
	return res, nil
}

// markUnresolved stores the negative entry so later resolves of this key
// skip the remote call entirely.
func (r *Resolver) markUnresolved(ctx context.Context, key string) (model.Resolution, error) {
	entry := model.CacheEntry{Key: key, Unresolved: true, FetchedAt: time.Now().UTC()}
	if err := r.cache.Set(ctx, entry); err != nil {
		return model.Resolution{}, eris.Wrapf(err, "resolve: cache negative %s", key)
	}
	return model.Resolution{Source: model.SourceUnresolved}, nil
}

// pickTitle selects a candidate: an exact match on the normalized key
// wins, otherwise the top-ranked hit, gated by the configured similarity
// threshold when one is set. No disambiguation ranking.
func (r *Resolver) pickTitle(key string, results []wiki.SearchResult) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	for _, sr := range results {
		if textnorm.Key(sr.Title) == key {
			return sr.Title, true
		}
	}
	top := results[0]
	if r.cfg.MinTitleSimilarity > 0 && titleSimilarity(key, top.Title) < r.cfg.MinTitleSimilarity {
		return "", false
	}
	return top.Title, true
}

var uppercaseAnd = regexp.MustCompile(`\s+AND\s+`)

// cleanQuery strips answer-line artifacts that confuse full-text search:
// shouting AND conjunctions, wrapping quotes, and qualifier clauses after
// a semicolon.
func cleanQuery(phrase string) string {
	s := uppercaseAnd.ReplaceAllString(phrase, " and ")
	s = strings.Trim(s, ` "`)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// titleSimilarity is the token overlap between the normalized phrase key
// and a candidate title, in [0, 1]. Deliberately crude: it gates obvious
// drift, not disambiguation.
func titleSimilarity(key, title string) float64 {
	want := strings.Fields(key)
	got := strings.Fields(textnorm.Key(title))
	if len(want) == 0 || len(got) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(got))
	for _, tok := range got {
		set[tok] = struct{}{}
	}
	matched := 0
	for _, tok := range want {
		if _, ok := set[tok]; ok {
			matched++
		}
	}
	union := len(want) + len(set) - matched
	if union == 0 {
		return 0
	}
	return float64(matched) / float64(union)
}
