// Package pipeline drives the conversion of parsed question blocks into
// dataset records: segment the body, extract the answer phrases, resolve
// the primary phrase to a canonical wiki title, classify, and assemble.
// Stage failures land on the record as review conditions; only
// infrastructure trouble or cancellation stops a run.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openqb/qantagen/internal/answer"
	"github.com/openqb/qantagen/internal/cache"
	"github.com/openqb/qantagen/internal/classify"
	"github.com/openqb/qantagen/internal/config"
	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/qanta"
	"github.com/openqb/qantagen/internal/resolve"
	"github.com/openqb/qantagen/internal/segment"
	"github.com/openqb/qantagen/internal/store"
	"github.com/openqb/qantagen/pkg/wiki"
)

// Pipeline orchestrates the conversion stages. One Pipeline serves many
// questions concurrently: the stages are stateless and the resolver
// collapses concurrent lookups for the same key.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	segmenter  *segment.Segmenter
	extractor  *answer.Extractor
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	assembler  *qanta.Assembler
}

// Option adjusts a Pipeline at construction time.
type Option func(*Pipeline)

// WithTournament overrides the tournament name derived from packet IDs.
func WithTournament(name string) Option {
	return func(p *Pipeline) { p.assembler.Tournament = name }
}

// WithYear overrides the year derived from packet IDs.
func WithYear(year int) Option {
	return func(p *Pipeline) { p.assembler.Year = year }
}

// New creates a Pipeline with all dependencies. The wiki client is
// injected so tests can swap the HTTP edge; the resolution cache layers
// an in-memory tier over the durable store.
func New(cfg *config.Config, st store.Store, client wiki.Client, opts ...Option) *Pipeline {
	resCache := cache.NewLayered(
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		time.Duration(cfg.Cache.PurgeMinutes)*time.Minute,
		cache.NewStoreCache(st),
	)

	p := &Pipeline{
		cfg:        cfg,
		store:      st,
		segmenter:  segment.New(cfg.Segment),
		extractor:  answer.New(cfg.Answer),
		classifier: classify.New(cfg.Classify),
		resolver:   resolve.NewResolver(client, resCache, cfg.Resolve),
		assembler:  qanta.NewAssembler(cfg.Convert.Fold),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolvePhrase resolves a single answer phrase through the shared
// cache, outside any conversion run.
func (p *Pipeline) ResolvePhrase(ctx context.Context, phrase string) (model.Resolution, error) {
	return p.resolveWithTimeout(ctx, phrase)
}

// ConvertQuestion converts one parsed block into its final record.
// Stage failures are recorded on the record and never abort the
// conversion; the returned error reports infrastructure trouble or a
// canceled context only.
func (p *Pipeline) ConvertQuestion(ctx context.Context, block model.RawQuestionBlock) (model.QuestionRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.QuestionRecord{}, err
	}

	var conds qanta.Conditions

	units, segErr := p.segmenter.Segment(block.Text)
	if errors.Is(segErr, model.ErrMissingAnswerLine) {
		conds.MissingAnswerLine = true
	}

	answerLine := block.AnswerLine
	if answerLine == "" {
		if _, line, found := p.segmenter.StripAnswerLine(block.Text); found {
			answerLine = line
		}
	}

	extracted, extractErr := p.extractor.Extract(answerLine)
	if answerLine != "" && errors.Is(extractErr, model.ErrEmptyAnswer) {
		conds.EmptyAnswer = true
	}

	res, resErr := p.resolveWithTimeout(ctx, extracted.Primary)
	switch {
	case resErr == nil:
	case errors.Is(resErr, model.ErrResolutionTimeout):
		conds.ResolutionTimeout = true
	case errors.Is(resErr, context.Canceled) || errors.Is(resErr, context.DeadlineExceeded):
		if ctx.Err() != nil {
			return model.QuestionRecord{}, ctx.Err()
		}
		// The per-lookup deadline hit before the resolver could turn it
		// into a timeout condition.
		conds.ResolutionTimeout = true
	default:
		return model.QuestionRecord{}, eris.Wrapf(resErr, "pipeline: resolve %s", block.QID())
	}

	category := p.classifier.Classify(block.SourceCategoryHint, extracted.Primary, block.Text)

	return p.assembler.Assemble(block, units, extracted, res, category, conds), nil
}

// ConvertPacket converts blocks concurrently. Output order follows input
// order regardless of completion order. The returned error reports
// infrastructure failures or cancellation; per-question conditions stay
// on the records.
func (p *Pipeline) ConvertPacket(ctx context.Context, blocks []model.RawQuestionBlock) ([]model.QuestionRecord, error) {
	if len(blocks) == 0 {
		return nil, nil
	}

	concurrency := p.cfg.Convert.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	records := make([]model.QuestionRecord, len(blocks))
	var resolved, unresolved, review atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, block := range blocks {
		g.Go(func() error {
			rec, err := p.ConvertQuestion(gctx, block)
			if err != nil {
				return err
			}
			if rec.Resolved {
				resolved.Add(1)
			} else {
				unresolved.Add(1)
			}
			if rec.NeedsReview {
				review.Add(1)
			}
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("pipeline: packet converted",
		zap.Int("questions", len(blocks)),
		zap.Int64("resolved", resolved.Load()),
		zap.Int64("unresolved", unresolved.Load()),
		zap.Int64("needs_review", review.Load()),
	)

	return records, nil
}

// ConvertBatch converts blocks under a store-tracked run: the run is
// created first, completed with summary counts on success, and marked
// failed when the conversion stops early.
func (p *Pipeline) ConvertBatch(ctx context.Context, source string, blocks []model.RawQuestionBlock) ([]model.QuestionRecord, *model.RunResult, error) {
	run, err := p.store.CreateRun(ctx, source)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: create run")
	}

	log := zap.L().With(zap.String("run_id", run.ID), zap.String("source", source))
	log.Info("pipeline: starting conversion", zap.Int("questions", len(blocks)))

	callsBefore := p.resolver.RemoteCalls()

	records, err := p.ConvertPacket(ctx, blocks)
	if err != nil {
		if failErr := p.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(failErr))
		}
		return nil, nil, err
	}

	result := &model.RunResult{
		Questions:   len(records),
		RemoteCalls: int(p.resolver.RemoteCalls() - callsBefore),
	}
	for _, rec := range records {
		if rec.Resolved {
			result.Resolved++
		} else {
			result.Unresolved++
		}
		if rec.NeedsReview {
			result.NeedsReview++
		}
	}

	if err := p.store.CompleteRun(ctx, run.ID, result); err != nil {
		return records, result, eris.Wrap(err, "pipeline: complete run")
	}

	log.Info("pipeline: conversion complete",
		zap.Int("questions", result.Questions),
		zap.Int("resolved", result.Resolved),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("needs_review", result.NeedsReview),
		zap.Int("remote_calls", result.RemoteCalls),
	)

	return records, result, nil
}

// resolveWithTimeout bounds one resolution by the configured wiki
// timeout. Zero disables the per-lookup deadline.
func (p *Pipeline) resolveWithTimeout(ctx context.Context, phrase string) (model.Resolution, error) {
	timeout := time.Duration(p.cfg.Wiki.TimeoutSecs) * time.Second
	if timeout <= 0 {
		return p.resolver.Resolve(ctx, phrase)
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.resolver.Resolve(rctx, phrase)
}
