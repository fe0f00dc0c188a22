package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-crawler/internal/config"
	"stock-crawler/internal/crawler"
	"stock-crawler/internal/observability"
	"stock-crawler/internal/postprocess"
	"stock-crawler/internal/profile"
	"stock-crawler/internal/storage"
)

type fakeWorld struct {
	mu       sync.Mutex
	calls    []string
	launched int

	missing  map[string]bool
	notStock map[string]bool
	failing  map[string]bool
	fatal    map[string]bool
	panics   map[string]bool
	broken   map[string]bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		missing:  map[string]bool{},
		notStock: map[string]bool{},
		failing:  map[string]bool{},
		fatal:    map[string]bool{},
		panics:   map[string]bool{},
		broken:   map[string]bool{},
	}
}

func (w *fakeWorld) record(call string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, call)
}

func (w *fakeWorld) sortedCalls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := append([]string(nil), w.calls...)
	sort.Strings(out)
	return out
}

func (w *fakeWorld) factory(context.Context, crawler.Options) (Crawler, error) {
	w.mu.Lock()
	w.launched++
	w.mu.Unlock()
	return &fakeCrawler{
		world:   w,
		results: make(crawler.Results),
		infos:   make(map[string]profile.Info),
	}, nil
}

type fakeCrawler struct {
	world   *fakeWorld
	results crawler.Results
	infos   map[string]profile.Info
	stock   *bool
}

func (c *fakeCrawler) Exists(_ context.Context, symbol string) (bool, error) {
	c.world.record("exists:" + symbol)
	if c.world.broken["exists:"+symbol] {
		return false, errors.New("navigation failed")
	}
	if c.world.missing[symbol] {
		return false, nil
	}
	stock := !c.world.notStock[symbol]
	c.stock = &stock
	return true, nil
}

func (c *fakeCrawler) IsStock() *bool { return c.stock }

func (c *fakeCrawler) TakeInfo(symbol string) profile.Info {
	info := profile.Info{Stock: c.stock}
	if c.stock != nil && *c.stock {
		info.Currency = "USD"
	}
	c.infos[symbol] = info
	c.stock = nil
	return info
}

func (c *fakeCrawler) Summary(_ context.Context, symbol string) error {
	c.world.record("summary:" + symbol)
	switch {
	case c.world.panics[symbol]:
		panic("unexpected page layout")
	case c.world.fatal[symbol]:
		return errors.New("storage is read-only")
	case c.world.failing[symbol]:
		c.results.Record(symbol, crawler.SectionSummary, []bool{true, false})
	}
	return nil
}

func (c *fakeCrawler) History(_ context.Context, symbol string) error {
	c.world.record("history:" + symbol)
	if c.world.broken["partial:"+symbol] {
		c.results.Record(symbol, crawler.SectionHistory, []bool{true, false, false})
	}
	if c.world.broken["history:"+symbol] {
		return errors.New("download dir is gone")
	}
	return nil
}

func (c *fakeCrawler) Financials(_ context.Context, symbol string) error {
	c.world.record("financials:" + symbol)
	return nil
}

func (c *fakeCrawler) Statistics(_ context.Context, symbol string) error {
	c.world.record("statistics:" + symbol)
	return nil
}

func (c *fakeCrawler) Results() crawler.Results { return c.results }
func (c *fakeCrawler) Infos() map[string]profile.Info { return c.infos }
func (c *fakeCrawler) Close() error { return nil }

type fakePostProcessor struct {
	opts    []postprocess.Options
	symbols [][]string
}

func (f *fakePostProcessor) factory(opts postprocess.Options) PostProcessor {
	f.opts = append(f.opts, opts)
	return f
}

func (f *fakePostProcessor) Run(symbols []string) error {
	f.symbols = append(f.symbols, symbols)
	return nil
}

type fakeRepo struct {
	runs     []*storage.RunSummary
	failures []storage.SectionFailure
}

func (r *fakeRepo) SaveRun(_ context.Context, run *storage.RunSummary) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRepo) SaveFailures(_ context.Context, failures []storage.SectionFailure) (int, error) {
	r.failures = append(r.failures, failures...)
	return len(failures), nil
}

func (r *fakeRepo) GetLastRunTime(context.Context, string) (time.Time, error) {
	return time.Time{}, nil
}

func (r *fakeRepo) Close() error { return nil }

type testEnv struct {
	cfg     *config.Config
	world   *fakeWorld
	post    *fakePostProcessor
	repo    *fakeRepo
	metrics *observability.Metrics
	profile *profile.Profile
	out     *bytes.Buffer
}

func newTestEnv(t *testing.T, profileBody string, workers int) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.Result = filepath.Join(dir, "crawler", "result.json")
	cfg.Observability.MetricsPath = filepath.Join(dir, "metrics", "crawler.prom")
	cfg.Crawl.Workers = workers

	profilePath := filepath.Join(dir, "stock_profile.csv")
	require.NoError(t, os.WriteFile(profilePath, []byte(profileBody), 0o644))

	return &testEnv{
		cfg:     &cfg,
		world:   newFakeWorld(),
		post:    &fakePostProcessor{},
		repo:    &fakeRepo{},
		metrics: observability.NewMetrics(),
		profile: profile.New(profilePath, filepath.Join(dir, "backup.csv"), nil, observability.NewNopLogger()),
		out:     &bytes.Buffer{},
	}
}

func (e *testEnv) orchestrator(opts Options) *Orchestrator {
	return NewOrchestrator(Deps{
		Config:           e.cfg,
		Logger:           observability.NewNopLogger(),
		Profile:          e.profile,
		NewCrawler:       e.world.factory,
		NewPostProcessor: e.post.factory,
		Repository:       e.repo,
		Metrics:          e.metrics,
		Out:              e.out,
	}, opts)
}

const stockProfile = "Symbol,Name,Stock\nAAPL,Apple,True\nBAD,Bad,True\nFTL,Fatal,True\nMSFT,Microsoft,True\nPNC,Panic,True\nSPY,SPDR,False\n"

func TestSummaryRunIsolatesSymbolFailures(t *testing.T) {
	env := newTestEnv(t, stockProfile, 2)
	env.world.failing["BAD"] = true
	env.world.fatal["FTL"] = true
	env.world.panics["PNC"] = true

	report, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Summary: true})
	require.NoError(t, err)

	// SPY не акция и не обходится; все остальные символы обошли, несмотря на ошибки
	assert.Equal(t, []string{"summary:AAPL", "summary:BAD", "summary:FTL", "summary:MSFT", "summary:PNC"}, env.world.sortedCalls())
	assert.Equal(t, 2, env.world.launched)
	assert.Empty(t, env.post.opts, "summary run does not post-process")

	// ошибка и паника секции тоже попадают в результаты
	assert.Equal(t, crawler.Results{
		"BAD": {crawler.SectionSummary: {true, false}},
		"FTL": {crawler.SectionSummary: {false}},
		"PNC": {crawler.SectionSummary: {false}},
	}, report.Results)

	data, err := os.ReadFile(env.cfg.Paths.Result)
	require.NoError(t, err)
	var saved crawler.Results
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, report.Results, saved)

	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.Symbols.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.Symbols.WithLabelValues(observability.StatusFailed)))
	assert.FileExists(t, env.cfg.Observability.MetricsPath)

	assert.Contains(t, env.out.String(), "BAD")
	assert.Contains(t, env.out.String(), "TF")

	require.Len(t, env.repo.runs, 1)
	run := env.repo.runs[0]
	assert.Equal(t, "summary", run.Mode)
	assert.Equal(t, 5, run.Symbols)
	assert.Equal(t, 3, run.FailedSymbols)
	assert.Len(t, run.CheckSum, 64)
	require.Len(t, env.repo.failures, 3)
	assert.Equal(t, storage.SectionFailure{
		RunID:   run.RunID,
		Symbol:  "BAD",
		Section: crawler.SectionSummary,
		Result:  "TF",
		Date:    run.FinishedAt,
	}, env.repo.failures[0])
	assert.Equal(t, "FTL", env.repo.failures[1].Symbol)
	assert.Equal(t, "F", env.repo.failures[1].Result)
	assert.Equal(t, "PNC", env.repo.failures[2].Symbol)
}

func TestFailedSectionKeepsPartialSteps(t *testing.T) {
	env := newTestEnv(t, "Symbol,Name\nAAPL,Apple\nXYZ,Broken\n", 1)
	env.world.broken["history:AAPL"] = true
	env.world.broken["exists:XYZ"] = true
	env.world.broken["partial:AAPL"] = true

	report, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Init: true})
	require.NoError(t, err)

	assert.Equal(t, crawler.Results{
		"AAPL": {crawler.SectionHistory: {true, false, false}},
		"XYZ":  {crawler.SectionExists: {false}},
	}, report.Results)

	data, err := os.ReadFile(env.cfg.Paths.Result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"exists": [`)
}

func TestInitRunCrawlsStocksAndUpdatesProfile(t *testing.T) {
	env := newTestEnv(t, "Symbol,Name\nAAPL,Apple\nSPY,SPDR\nZZZ,Gone\n", 1)
	env.world.notStock["SPY"] = true
	env.world.missing["ZZZ"] = true

	_, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Init: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"exists:AAPL", "exists:SPY", "exists:ZZZ",
		"financials:AAPL", "history:AAPL", "statistics:AAPL",
	}, env.world.sortedCalls())

	prof, err := env.profile.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"True", "False", ""}, prof.Column(profile.StockColumn))
	assert.Equal(t, []string{"USD", "", ""}, prof.Column(profile.CurrencyColumn))

	require.Len(t, env.post.opts, 1)
	assert.Equal(t, postprocess.Options{Init: true}, env.post.opts[0])
	assert.Equal(t, [][]string{{"AAPL", "SPY", "ZZZ"}}, env.post.symbols)
}

func TestSectionFailureDoesNotSkipNextSections(t *testing.T) {
	env := newTestEnv(t, "Symbol,Name\nAAPL,Apple\n", 1)
	env.world.broken["history:AAPL"] = true

	_, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Init: true, Summary: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"exists:AAPL", "financials:AAPL", "history:AAPL", "statistics:AAPL", "summary:AAPL",
	}, env.world.sortedCalls())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Symbols.WithLabelValues(observability.StatusFailed)))
}

func TestDebugRunKeepsResultFile(t *testing.T) {
	env := newTestEnv(t, stockProfile, 1)
	env.cfg.Crawl.DebugSymbols = 2
	env.world.failing["BAD"] = true

	report, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Debug: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "BAD"}, report.Symbols)
	assert.Contains(t, env.world.sortedCalls(), "summary:BAD")
	assert.NoFileExists(t, env.cfg.Paths.Result)
	assert.Equal(t, []postprocess.Options{{Debug: true}}, env.post.opts)
}

func TestProcessOnlySkipsCrawl(t *testing.T) {
	env := newTestEnv(t, stockProfile, 1)

	_, err := env.orchestrator(Options{Limit: 2}).Run(context.Background(), Mode{ProcessOnly: true})
	require.NoError(t, err)

	assert.Zero(t, env.world.launched)
	assert.Equal(t, [][]string{{"MSFT", "PNC"}}, env.post.symbols)
	require.Len(t, env.repo.runs, 1)
	assert.Empty(t, env.repo.runs[0].CheckSum)
}

func TestRunWithoutProfileFails(t *testing.T) {
	env := newTestEnv(t, stockProfile, 1)
	env.profile = profile.New(filepath.Join(t.TempDir(), "missing.csv"), "", nil, observability.NewNopLogger())

	_, err := env.orchestrator(Options{}).Run(context.Background(), Mode{Summary: true})
	assert.Error(t, err)
}

func TestLimit(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}

	assert.Equal(t, symbols, Limit(symbols, 0, false, 5))
	assert.Equal(t, []string{"F", "G"}, Limit(symbols, 2, false, 5))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, Limit(symbols, 0, true, 5))
	assert.Equal(t, []string{"D", "E"}, Limit(symbols, 2, true, 5))
	assert.Equal(t, symbols, Limit(symbols, 10, false, 5))
}

func TestShards(t *testing.T) {
	tests := []struct {
		name    string
		symbols []string
		n       int
		want    [][]string
	}{
		{"even", []string{"A", "B", "C", "D"}, 2, [][]string{{"A", "B"}, {"C", "D"}}},
		{"uneven", []string{"A", "B", "C", "D", "E"}, 2, [][]string{{"A", "B", "C"}, {"D", "E"}}},
		{"more workers than symbols", []string{"A", "B"}, 4, [][]string{{"A"}, {"B"}}},
		{"single", []string{"A", "B", "C"}, 1, [][]string{{"A", "B", "C"}}},
		{"empty", nil, 3, [][]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Shards(tt.symbols, tt.n))
		})
	}
}

func TestTryCrawlRecoversPanic(t *testing.T) {
	logger := observability.NewNopLogger()

	assert.True(t, TryCrawl(logger, "AAPL", "summary", func() error { return nil }))
	assert.False(t, TryCrawl(logger, "AAPL", "history", func() error { return errors.New("boom") }))
	assert.False(t, TryCrawl(logger, "AAPL", "statistics", func() error { panic("boom") }))
}

func TestPoolFailsWhenNoCrawlerStarts(t *testing.T) {
	failing := func(context.Context, crawler.Options) (Crawler, error) {
		return nil, errors.New("chrome not found")
	}
	pool := NewPool(2, failing, observability.NewNopLogger())

	_, _, err := pool.Run(context.Background(), []string{"A", "B"}, func(context.Context, Crawler, []string) {}, crawler.Options{})
	assert.ErrorContains(t, err, "chrome not found")
}

func TestModeName(t *testing.T) {
	assert.Equal(t, "init", Mode{Init: true}.Name())
	assert.Equal(t, "debug", Mode{Init: true, Debug: true}.Name())
	assert.Equal(t, "process", Mode{ProcessOnly: true}.Name())
	assert.Equal(t, "summary", Mode{Summary: true}.Name())
	assert.Equal(t, "crawl", Mode{}.Name())
}
