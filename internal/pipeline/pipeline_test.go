package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openqb/qantagen/internal/classify"
	"github.com/openqb/qantagen/internal/config"
	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/store"
	"github.com/openqb/qantagen/pkg/wiki"
)

type fakeWiki struct {
	mu       sync.Mutex
	queries  []string
	hits     map[string][]wiki.SearchResult
	extracts map[string]string
	err      error
}

func (f *fakeWiki) Search(_ context.Context, query string) ([]wiki.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}

func (f *fakeWiki) Extract(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extracts[title], nil
}

func (f *fakeWiki) queryCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q == query {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]model.CacheEntry
	runs    map[string]*model.Run
	nextRun int

	getErr    error
	putErr    error
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: map[string]model.CacheEntry{},
		runs:    map[string]*model.Run{},
	}
}

func (f *fakeStore) GetEntry(_ context.Context, key string) (*model.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if e, ok := f.entries[key]; ok {
		return &e, nil
	}
	return nil, nil
}

func (f *fakeStore) PutEntry(_ context.Context, entry model.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[entry.Key] = entry
	return nil
}

func (f *fakeStore) PutEntries(ctx context.Context, entries []model.CacheEntry) (int64, error) {
	for _, e := range entries {
		if err := f.PutEntry(ctx, e); err != nil {
			return 0, err
		}
	}
	return int64(len(entries)), nil
}

func (f *fakeStore) DeleteEntry(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeStore) PurgeUnresolved(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k, e := range f.entries {
		if e.Unresolved {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) EntryStats(_ context.Context) (*store.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &store.CacheStats{Total: int64(len(f.entries))}
	for _, e := range f.entries {
		if e.Unresolved {
			stats.Unresolved++
		}
	}
	return stats, nil
}

func (f *fakeStore) CreateRun(_ context.Context, source string) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextRun++
	run := &model.Run{
		ID:        fmt.Sprintf("run-%d", f.nextRun),
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeStore) CompleteRun(_ context.Context, runID string, result *model.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return eris.Errorf("no such run %s", runID)
	}
	run.Status = model.RunStatusComplete
	run.Result = result
	return nil
}

func (f *fakeStore) FailRun(_ context.Context, runID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return eris.Errorf("no such run %s", runID)
	}
	run.Status = model.RunStatusFailed
	run.Result = &model.RunResult{Error: message}
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (*model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[runID]; ok {
		cp := *run
		return &cp, nil
	}
	return nil, eris.Errorf("no such run %s", runID)
}

func (f *fakeStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Run
	for _, run := range f.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, *run)
	}
	return out, nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

func (f *fakeStore) entry(key string) (model.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	return e, ok
}

func testConfig() *config.Config {
	return &config.Config{
		Cache:   config.CacheConfig{TTLMinutes: 5, PurgeMinutes: 5},
		Wiki:    config.WikiConfig{TimeoutSecs: 5},
		Resolve: config.ResolveConfig{FetchArticles: true},
		Convert: config.ConvertConfig{Concurrency: 4, Fold: "guesstrain"},
		Classify: classify.Config{
			Default: classify.DefaultLabel,
			Rules: []classify.Rule{
				{Label: "Geography", Keywords: []string{"river", "delta"}},
				{Label: "Science:Physics", Keywords: []string{"quantum", "momentum"}},
			},
		},
	}
}

func nileBlock(num int) model.RawQuestionBlock {
	return model.RawQuestionBlock{
		Text: "This river's annual flooding deposited silt along its banks. " +
			"Its delta opens into the Mediterranean Sea.\n" +
			"ANSWER: the Nile River",
		AnswerLine:     "ANSWER: the Nile River",
		PacketID:       "2019_nsc",
		RoundID:        "r4",
		QuestionNumber: num,
	}
}

func nileWiki() *fakeWiki {
	return &fakeWiki{
		hits: map[string][]wiki.SearchResult{
			"the Nile River": {{Title: "Nile", PageID: 21255}},
		},
		extracts: map[string]string{
			"Nile": "The Nile is a major north-flowing river in northeastern Africa.",
		},
	}
}

func TestConvertQuestion_EndToEnd(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	fw := nileWiki()
	p := New(testConfig(), st, fw)

	rec, err := p.ConvertQuestion(context.Background(), nileBlock(7))
	require.NoError(t, err)

	assert.Equal(t, "2019_nsc_r4_Q07", rec.QID)
	assert.Equal(t, "the Nile River", rec.Answer)
	assert.Equal(t, "ANSWER: the Nile River", rec.RawAnswer)
	assert.Equal(t, "Nile", rec.WikiTitle)
	assert.True(t, rec.Resolved)
	assert.False(t, rec.NeedsReview)
	assert.Empty(t, rec.Notes)
	assert.Equal(t, model.CategoryLabel("Geography"), rec.Category)
	assert.Equal(t, "guesstrain", rec.Fold)
	assert.Equal(t, "PACE NSC", rec.Tournament)
	assert.Equal(t, 2019, rec.Year)
	assert.False(t, rec.CreatedAt.IsZero())

	require.Len(t, rec.Sentences, 2)
	assert.Equal(t, 1, rec.Sentences[0].Index)
	assert.Equal(t, 2, rec.Sentences[1].Index)
	assert.NotContains(t, rec.Text, "ANSWER")
	assert.Contains(t, rec.Text, model.SentenceJoiner)

	// The positive outcome reached the durable cache.
	entry, ok := st.entry("the nile river")
	require.True(t, ok)
	assert.Equal(t, "Nile", entry.Title)
	assert.False(t, entry.Unresolved)
}

func TestConvertQuestion_MissingAnswerLine(t *testing.T) {
	t.Parallel()

	fw := nileWiki()
	p := New(testConfig(), newFakeStore(), fw)

	block := model.RawQuestionBlock{
		Text:           "This question lost its answer line in OCR.",
		PacketID:       "2019_nsc",
		QuestionNumber: 1,
	}
	rec, err := p.ConvertQuestion(context.Background(), block)
	require.NoError(t, err)

	assert.Equal(t, model.AnswerNeedsReview, rec.Answer)
	assert.True(t, rec.NeedsReview)
	assert.False(t, rec.Resolved)
	assert.Contains(t, rec.Notes, "answer line not found")
	assert.Empty(t, fw.queries)
}

func TestConvertQuestion_EmptyAnswerAfterNormalization(t *testing.T) {
	t.Parallel()

	fw := nileWiki()
	p := New(testConfig(), newFakeStore(), fw)

	block := model.RawQuestionBlock{
		Text:           "A question whose answer line is all directive.\nANSWER: (accept anything)",
		AnswerLine:     "ANSWER: (accept anything)",
		PacketID:       "2019_nsc",
		QuestionNumber: 2,
	}
	rec, err := p.ConvertQuestion(context.Background(), block)
	require.NoError(t, err)

	assert.Equal(t, model.AnswerNeedsReview, rec.Answer)
	assert.True(t, rec.NeedsReview)
	assert.Contains(t, rec.Notes, "empty answer after normalization")
	assert.NotContains(t, rec.Notes, "answer line not found")
	assert.Equal(t, []string{"anything"}, rec.AlternateAnswers)
	assert.Empty(t, fw.queries)
}

func TestConvertQuestion_MidlineAnswerFallback(t *testing.T) {
	t.Parallel()

	fw := &fakeWiki{
		hits: map[string][]wiki.SearchResult{
			"William Shakespeare": {{Title: "William Shakespeare"}},
		},
		extracts: map[string]string{},
	}
	p := New(testConfig(), newFakeStore(), fw)

	// The parser found no line-anchored answer label, but one sits
	// mid-line in the block text.
	block := model.RawQuestionBlock{
		Text:           "He wrote many plays about Danish princes. ANSWER: William Shakespeare",
		PacketID:       "misc",
		QuestionNumber: 3,
	}
	rec, err := p.ConvertQuestion(context.Background(), block)
	require.NoError(t, err)

	assert.Equal(t, "William Shakespeare", rec.Answer)
	assert.True(t, rec.Resolved)
	assert.NotContains(t, rec.Notes, "answer line not found")
	require.Len(t, fw.queries, 1)
}

func TestConvertQuestion_TimeoutFlagged(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	fw := &fakeWiki{err: eris.Wrap(context.DeadlineExceeded, "wiki: search request")}
	p := New(testConfig(), st, fw)

	rec, err := p.ConvertQuestion(context.Background(), nileBlock(4))
	require.NoError(t, err)

	assert.True(t, rec.NeedsReview)
	assert.False(t, rec.Resolved)
	assert.Empty(t, rec.WikiTitle)
	assert.Contains(t, rec.Notes, "resolution timed out")
	// The timeout still wrote a negative entry.
	entry, ok := st.entry("the nile river")
	require.True(t, ok)
	assert.True(t, entry.Unresolved)
}

func TestConvertQuestion_StoreFailureAborts(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.getErr = eris.New("disk I/O error")
	p := New(testConfig(), st, nileWiki())

	_, err := p.ConvertQuestion(context.Background(), nileBlock(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: resolve")
}

func TestConvertQuestion_Canceled(t *testing.T) {
	t.Parallel()

	p := New(testConfig(), newFakeStore(), nileWiki())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ConvertQuestion(ctx, nileBlock(6))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConvertPacket_OrderAndDeduplication(t *testing.T) {
	t.Parallel()

	fw := nileWiki()
	fw.hits["quantum tunneling"] = nil
	p := New(testConfig(), newFakeStore(), fw)

	blocks := []model.RawQuestionBlock{
		nileBlock(1),
		{
			Text:           "Alpha decay is explained by this effect.\nANSWER: quantum tunneling",
			AnswerLine:     "ANSWER: quantum tunneling",
			PacketID:       "2019_nsc",
			RoundID:        "r4",
			QuestionNumber: 2,
		},
		nileBlock(3),
	}

	records, err := p.ConvertPacket(context.Background(), blocks)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, block := range blocks {
		assert.Equal(t, block.QID(), records[i].QID, "records must follow input order")
	}

	assert.True(t, records[0].Resolved)
	assert.False(t, records[1].Resolved)
	assert.True(t, records[1].NeedsReview)
	assert.True(t, records[2].Resolved)

	// Two questions share one answer: one remote lookup between them.
	assert.Equal(t, 1, fw.queryCount("the Nile River"))
	assert.Equal(t, 1, fw.queryCount("quantum tunneling"))
}

func TestConvertPacket_Empty(t *testing.T) {
	t.Parallel()

	p := New(testConfig(), newFakeStore(), nileWiki())

	records, err := p.ConvertPacket(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConvertPacket_InfraFailureStopsRun(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.putErr = eris.New("database is locked")
	p := New(testConfig(), st, nileWiki())

	_, err := p.ConvertPacket(context.Background(), []model.RawQuestionBlock{nileBlock(1), nileBlock(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: resolve")
}

func TestConvertBatch_RunBookkeeping(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	fw := nileWiki()
	fw.hits["quantum tunneling"] = nil
	p := New(testConfig(), st, fw)

	blocks := []model.RawQuestionBlock{
		nileBlock(1),
		nileBlock(2),
		{
			Text:           "Alpha decay is explained by this effect.\nANSWER: quantum tunneling",
			AnswerLine:     "ANSWER: quantum tunneling",
			PacketID:       "2019_nsc",
			RoundID:        "r4",
			QuestionNumber: 3,
		},
	}

	records, result, err := p.ConvertBatch(context.Background(), "packets/2019", blocks)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.NotNil(t, result)

	assert.Equal(t, 3, result.Questions)
	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 1, result.Unresolved)
	assert.Equal(t, 1, result.NeedsReview)
	assert.Equal(t, 2, result.RemoteCalls)

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "packets/2019", run.Source)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.Questions)
}

func TestConvertBatch_FailureMarksRun(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.putErr = eris.New("database is locked")
	p := New(testConfig(), st, nileWiki())

	_, _, err := p.ConvertBatch(context.Background(), "packets/2019", []model.RawQuestionBlock{nileBlock(1)})
	require.Error(t, err)

	run, getErr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	require.NotNil(t, run.Result)
	assert.Contains(t, run.Result.Error, "resolve")
}

func TestConvertBatch_CreateRunError(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	st.createErr = eris.New("no such table: runs")
	fw := nileWiki()
	p := New(testConfig(), st, fw)

	_, _, err := p.ConvertBatch(context.Background(), "packets/2019", []model.RawQuestionBlock{nileBlock(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: create run")
	assert.Empty(t, fw.queries)
}

func TestResolvePhrase_UsesSharedCache(t *testing.T) {
	t.Parallel()

	fw := nileWiki()
	p := New(testConfig(), newFakeStore(), fw)

	res, err := p.ResolvePhrase(context.Background(), "the Nile River")
	require.NoError(t, err)
	assert.Equal(t, "Nile", res.Title)
	assert.Equal(t, model.SourceRemote, res.Source)

	res, err = p.ResolvePhrase(context.Background(), "The NILE river")
	require.NoError(t, err)
	assert.Equal(t, "Nile", res.Title)
	assert.Equal(t, model.SourceCache, res.Source)
	require.Len(t, fw.queries, 1)
}

func TestWithTournamentAndYear(t *testing.T) {
	t.Parallel()

	p := New(testConfig(), newFakeStore(), nileWiki(),
		WithTournament("ACF Regionals"), WithYear(2021))

	rec, err := p.ConvertQuestion(context.Background(), nileBlock(9))
	require.NoError(t, err)
	assert.Equal(t, "ACF Regionals", rec.Tournament)
	assert.Equal(t, 2021, rec.Year)
}

func TestConvertPacket_ConcurrencyFloor(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Convert.Concurrency = 0
	p := New(cfg, newFakeStore(), nileWiki())

	records, err := p.ConvertPacket(context.Background(), []model.RawQuestionBlock{nileBlock(1)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, strings.HasSuffix(records[0].QID, "_Q01"))
}
