package postprocess

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-crawler/internal/config"
	"stock-crawler/internal/normalize"
	"stock-crawler/internal/observability"
	"stock-crawler/internal/paths"
	"stock-crawler/internal/table"
)

type testEnv struct {
	batch       *Batch
	store       *table.Store
	mapping     *config.Mapping
	mappingPath string
	dir         string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dir := t.TempDir()

	mapping := &config.Mapping{
		Col2Filename: map[string]string{
			"summary":          "summary",
			"tmp":              "tmp",
			"history":          "history",
			"dividend":         "dividend",
			"stock_split":      "stock_split",
			"income_statement": "income_statement",
			"balance_sheet":    "balance_sheet",
			"cash_flow":        "cash_flow",
			"statistics":       "statistics",
		},
		Col2Dtype: map[string]string{
			"Symbol":           config.DtypeString,
			"Fiscal Year Ends": config.DtypeDatetime,
		},
		Month2Digit: map[string]string{
			"Jan": "1", "Feb": "2", "Mar": "3", "Apr": "4", "May": "5", "Jun": "6",
			"Jul": "7", "Aug": "8", "Sep": "9", "Oct": "10", "Nov": "11", "Dec": "12",
		},
	}
	mappingPath := filepath.Join(dir, "mapping.json")

	resolver, err := paths.NewResolver(mapping, filepath.Join(dir, "company"), filepath.Join(dir, "profile.csv"))
	require.NoError(t, err)
	now := time.Date(2021, 1, 5, 19, 0, 0, 0, time.UTC)
	store := table.NewStore(resolver, observability.NewNopLogger()).WithClock(func() time.Time { return now })

	b := NewBatch(store, normalize.NewNormalizer(mapping), mapping, mappingPath, observability.NewNopLogger(), opts)
	return &testEnv{batch: b, store: store, mapping: mapping, mappingPath: mappingPath, dir: dir}
}

func (e *testEnv) write(t *testing.T, dataset, body string) {
	t.Helper()
	p, err := e.store.Path(dataset, "AAPL", e.batch.opts.Debug, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func (e *testEnv) load(t *testing.T, dataset string, yearly bool) *table.Table {
	t.Helper()
	var (
		tbl *table.Table
		err error
	)
	if yearly {
		tbl, err = e.store.LoadYearly(dataset, "AAPL", e.batch.opts.Debug)
	} else {
		tbl, err = e.store.Load(dataset, "AAPL", e.batch.opts.Debug)
	}
	require.NoError(t, err)
	require.NotNil(t, tbl, dataset)
	return tbl
}

const (
	rawIncomeStatement = "name,ttm,9/30/2020,6/30/2020,3/31/2020,12/31/2019,9/30/2019\n" +
		"TotalRevenue,294135000,64698000,59685000,58313000,91819000,64040000\n" +
		"BasicEPS (1),,0.74,0.65,0.64,4.99,3.03\n"
	rawStatistics = "name,ttm,9/30/2020,6/30/2020\n" +
		"MarketCap (intraday) 5,2.2T,1.98T,1.56T\n"
	rawTmp     = "Date,Fiscal Year Ends,Profit Margin\n2021-01-05,\"Sep 26, 2020\",20.91%\n"
	rawSummary = "Date,Symbol,Beta (5Y Monthly),Market Cap\n2021-01-05,AAPL,1.27,2.228T\n"
	rawHistory = "Date,Open,Close\n2021-01-04,133.52,129.41\nnull,,\n2021-01-06,127.72,126.60\n"
)

func TestRunProducesTypedDatasets(t *testing.T) {
	env := newTestEnv(t, Options{Init: true})
	env.write(t, "history", rawHistory)
	env.write(t, "income_statement", rawIncomeStatement)
	env.write(t, "statistics", rawStatistics)
	env.write(t, "tmp", rawTmp)
	env.write(t, "summary", rawSummary)

	require.NoError(t, env.batch.Run([]string{"AAPL"}))

	history := env.load(t, "history", false)
	assert.Equal(t, []string{"2021-01-06", "2021-01-04"}, history.Index)

	income := env.load(t, "income_statement", false)
	assert.Equal(t, []string{"TotalRevenue", "BasicEPS"}, income.Columns)
	assert.Equal(t, []string{"2020-09-30", "2020-06-30", "2020-03-31", "2019-12-31", "2019-09-30"}, income.Index)

	yearly := env.load(t, "income_statement", true)
	assert.Equal(t, []string{"2020-09-30"}, yearly.Index)
	assert.Equal(t, []string{"274515000", "7.02"}, yearly.Rows[0])

	stats := env.load(t, "statistics", false)
	assert.Equal(t, []string{"MarketCap", "Fiscal Year Ends", "Profit Margin"}, stats.Columns)
	if diff := cmp.Diff([]string{"1980000000000", "2020-09-26", "0.2091"}, stats.Rows[0]); diff != "" {
		t.Errorf("statistics row mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"1560000000000", "", ""}, stats.Rows[1])

	summary := env.load(t, "summary", false)
	assert.Equal(t, []string{"Symbol", "Beta", "Market Cap"}, summary.Columns)
	assert.Equal(t, []string{"AAPL", "1.27", "2228000000000"}, summary.Rows[0])

	// tmp перенесён в original, исходная выгрузка сохранена один раз
	resolver := env.store.Resolver()
	assert.FileExists(t, resolver.OriginalFile("AAPL", "tmp_original.csv"))
	assert.False(t, env.store.Exists("tmp", "AAPL", false))

	original, err := resolver.Resolve("income_statement", "AAPL", paths.Options{Original: true})
	require.NoError(t, err)
	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, rawIncomeStatement, string(data))

	// новые колонки отчётов попали в mapping
	filename, ok := env.mapping.Filename("TotalRevenue")
	assert.True(t, ok)
	assert.Equal(t, "income_statement", filename)
	saved, err := config.LoadMapping(env.mappingPath)
	require.NoError(t, err)
	assert.Equal(t, "income_statement", saved.Col2Filename["BasicEPS"])
}

func TestRunIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.write(t, "income_statement", rawIncomeStatement)
	env.write(t, "summary", rawSummary)

	require.NoError(t, env.batch.Run([]string{"AAPL"}))
	first := env.load(t, "income_statement", false)
	firstSummary := env.load(t, "summary", false)

	require.NoError(t, env.batch.Run([]string{"AAPL"}))
	assert.Equal(t, first, env.load(t, "income_statement", false))
	assert.Equal(t, firstSummary, env.load(t, "summary", false))
}

func TestSummaryColumnsStableAcrossDailyMerges(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.write(t, "summary", rawSummary)

	require.NoError(t, env.batch.Run([]string{"AAPL"}))
	first := env.load(t, "summary", false)
	assert.Equal(t, []string{"Symbol", "Beta", "Market Cap"}, first.Columns)

	// повторный снимок дня приходит с метками сайта и чистится перед слиянием
	rec := table.NewRecord("summary", env.store.Today())
	rec.Set("Symbol", "AAPL")
	rec.Set("Beta (5Y Monthly)", "1.30")
	rec.Set("Market Cap", "2.3T")
	rec.RenameColumns(normalize.NormalizeColumns)
	require.NoError(t, env.store.MergeAndSave("summary", "AAPL", table.RecordsToTable(rec), table.SaveOptions{}))

	require.NoError(t, env.batch.Run([]string{"AAPL"}))
	require.NoError(t, env.batch.Run([]string{"AAPL"}))

	got := env.load(t, "summary", false)
	assert.Equal(t, first.Columns, got.Columns)
	assert.Equal(t, []string{"1.30"}, got.Column("Beta"))
}

func TestStatisticsWaitForTmp(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.write(t, "statistics", rawStatistics)

	require.NoError(t, env.batch.ProcessText([]string{"AAPL"}))

	stats := env.load(t, "statistics", false)
	assert.False(t, normalize.IsDateIndexed(stats), "statistics stay raw without tmp")
}

func TestMergeStatisticsEmptyUsesToday(t *testing.T) {
	env := newTestEnv(t, Options{Debug: true})
	env.write(t, "tmp", rawTmp)

	merged, err := env.batch.MergeStatistics("AAPL", table.New(table.DateColumn, nil))
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, []string{"2021-01-05"}, merged.Index)
	assert.Equal(t, []string{"Fiscal Year Ends", "Profit Margin"}, merged.Columns)

	// в debug tmp не переносится
	assert.True(t, env.store.Exists("tmp", "AAPL", true))
}

func TestMissingSymbolIsNoop(t *testing.T) {
	env := newTestEnv(t, Options{})
	assert.NoError(t, env.batch.Run([]string{"NONE"}))
}
