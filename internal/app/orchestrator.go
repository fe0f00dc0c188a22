package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"stock-crawler/internal/checksum"
	"stock-crawler/internal/config"
	"stock-crawler/internal/crawler"
	"stock-crawler/internal/observability"
	"stock-crawler/internal/postprocess"
	"stock-crawler/internal/profile"
	"stock-crawler/internal/storage"
)

// Crawler: одна браузерная сессия, обходящая секции символов
type Crawler interface {
	Exists(ctx context.Context, symbol string) (bool, error)
	IsStock() *bool
	TakeInfo(symbol string) profile.Info
	Summary(ctx context.Context, symbol string) error
	History(ctx context.Context, symbol string) error
	Financials(ctx context.Context, symbol string) error
	Statistics(ctx context.Context, symbol string) error
	Results() crawler.Results
	Infos() map[string]profile.Info
	Close() error
}

// CrawlerFactory создаёт краулер для одного воркера
type CrawlerFactory func(ctx context.Context, opts crawler.Options) (Crawler, error)

// PostProcessor: пакетная обработка скачанных файлов
type PostProcessor interface {
	Run(symbols []string) error
}

type PostProcessorFactory func(opts postprocess.Options) PostProcessor

// Mode одного запуска
type Mode struct {
	Init        bool
	Debug       bool
	ProcessOnly bool
	Summary     bool
}

func (m Mode) Name() string {
	switch {
	case m.Debug:
		return "debug"
	case m.ProcessOnly:
		return "process"
	case m.Init:
		return "init"
	case m.Summary:
		return "summary"
	}
	return "crawl"
}

func (m Mode) crawlerOptions() crawler.Options {
	return crawler.Options{Init: m.Init, Debug: m.Debug}
}

// Options оркестратора, общие для всех запусков
type Options struct {
	// Limit > 0 оставляет последние Limit символов
	Limit   int
	Workers int
}

type Deps struct {
	Config           *config.Config
	Logger           *slog.Logger
	Profile          *profile.Profile
	NewCrawler       CrawlerFactory
	NewPostProcessor PostProcessorFactory
	// Repository может быть nil: итоги запуска тогда только в JSON
	Repository storage.Repository
	Metrics    *observability.Metrics
	// Out для таблицы незавершённых секций; nil = stdout
	Out io.Writer
}

type Orchestrator struct {
	cfg              *config.Config
	logger           *slog.Logger
	profile          *profile.Profile
	newCrawler       CrawlerFactory
	newPostProcessor PostProcessorFactory
	repo             storage.Repository
	metrics          *observability.Metrics
	out              io.Writer
	opts             Options
	now              func() time.Time
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = deps.Config.Crawl.Workers
	}
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	return &Orchestrator{
		cfg:              deps.Config,
		logger:           deps.Logger,
		profile:          deps.Profile,
		newCrawler:       deps.NewCrawler,
		newPostProcessor: deps.NewPostProcessor,
		repo:             deps.Repository,
		metrics:          deps.Metrics,
		out:              out,
		opts:             opts,
		now:              time.Now,
	}
}

// RunReport итог одного запуска
type RunReport struct {
	RunID      string
	Mode       string
	Symbols    []string
	Results    crawler.Results
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run: список символов, обход воркерами, результаты, флаги профиля, постобработка.
// Ошибка отдельного символа не прерывает запуск.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		Mode:      mode.Name(),
		Results:   make(crawler.Results),
		StartedAt: o.now(),
	}
	logger := o.logger.With("run_id", report.RunID, "mode", report.Mode)

	symbols, err := o.symbols(mode)
	if err != nil {
		return nil, err
	}
	report.Symbols = symbols

	logger.Info("Run started",
		"symbols", len(symbols),
		"workers", o.opts.Workers,
		"init", mode.Init,
		"debug", mode.Debug,
		"process_only", mode.ProcessOnly,
		"summary", mode.Summary,
	)

	if !mode.ProcessOnly {
		pool := NewPool(o.opts.Workers, o.newCrawler, logger)
		results, infos, err := pool.Run(ctx, symbols, func(ctx context.Context, c Crawler, shard []string) {
			o.crawlShard(ctx, logger, c, shard, mode)
		}, mode.crawlerOptions())
		if err != nil {
			return nil, err
		}
		report.Results = results

		logger.Info("Failed results",
			"symbols", len(results),
			"sections", results.Sections(),
		)
		RenderResults(o.out, results)

		if !mode.Debug {
			if err := results.WriteJSON(o.cfg.Paths.Result); err != nil {
				logger.Error("Failed to write results",
					"path", o.cfg.Paths.Result,
					"error", err.Error(),
				)
			}
		}

		if mode.Init {
			if err := o.profile.UpdateFlags(infos); err != nil {
				logger.Error("Failed to update profile flags", "error", err.Error())
			}
		}
	}

	if ctx.Err() == nil && (mode.Init || mode.Debug || mode.ProcessOnly) {
		batch := o.newPostProcessor(postprocess.Options{Init: mode.Init, Debug: mode.Debug})
		if err := batch.Run(symbols); err != nil {
			logger.Error("Post-processing finished with errors", "error", err.Error())
		}
	}

	report.FinishedAt = o.now()

	if o.metrics != nil {
		if err := o.metrics.WriteTextfile(o.cfg.Observability.MetricsPath); err != nil {
			logger.Warn("Failed to write metrics", "error", err.Error())
		}
	}
	o.saveRun(logger, report, mode)

	logger.Info("Run completed",
		"symbols", len(symbols),
		"failed_symbols", len(report.Results),
		"failed_sections", report.Results.Sections(),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Second).String(),
	)
	return report, ctx.Err()
}

// symbols: акции из профиля (в init все символы), затем ограничения debug и Limit
func (o *Orchestrator) symbols(mode Mode) ([]string, error) {
	symbols, err := o.profile.Symbols(!mode.Init)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	return Limit(symbols, o.opts.Limit, mode.Debug, o.cfg.Crawl.DebugSymbols), nil
}

// Limit: в debug первые debugCount символов, иначе последние limit (0 = все)
func Limit(symbols []string, limit int, debug bool, debugCount int) []string {
	if debug && debugCount > 0 && len(symbols) > debugCount {
		symbols = symbols[:debugCount]
	}
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[len(symbols)-limit:]
	}
	return symbols
}

// crawlShard обходит символы одного воркера по порядку
func (o *Orchestrator) crawlShard(ctx context.Context, logger *slog.Logger, c Crawler, shard []string, mode Mode) {
	for _, symbol := range shard {
		if ctx.Err() != nil {
			logger.Warn("Crawl interrupted", "symbol", symbol)
			return
		}

		ok := crawlSymbol(ctx, logger, c, symbol, mode)
		if o.metrics != nil {
			status := observability.StatusSuccess
			if !ok {
				status = observability.StatusFailed
			}
			o.metrics.Symbols.WithLabelValues(status).Inc()
		}
	}
}

// crawlSymbol: в init/debug проверка символа и секции акции, затем summary.
// Ошибка секции не мешает следующим секциям символа.
func crawlSymbol(ctx context.Context, logger *slog.Logger, c Crawler, symbol string, mode Mode) bool {
	ok := true
	try := func(section string, fn func(ctx context.Context, symbol string) error) {
		if !TryCrawl(logger, symbol, section, func() error { return fn(ctx, symbol) }) {
			recordFailure(c.Results(), symbol, section)
			ok = false
		}
	}

	if mode.Init || mode.Debug {
		exists := false
		try(crawler.SectionExists, func(ctx context.Context, symbol string) error {
			var err error
			exists, err = c.Exists(ctx, symbol)
			return err
		})
		if exists {
			if stock := c.IsStock(); stock != nil && *stock {
				try(crawler.SectionHistory, c.History)
				try(crawler.SectionFinancials, c.Financials)
				try(crawler.SectionStatistics, c.Statistics)
			}
		}
		c.TakeInfo(symbol)
		if !exists {
			return ok
		}
	}

	if mode.Summary || mode.Debug {
		try(crawler.SectionSummary, c.Summary)
	}
	return ok
}

// recordFailure: секция, прерванная ошибкой, попадает в результаты.
// Частичный вектор шагов, уже записанный драйвером, сохраняется.
func recordFailure(results crawler.Results, symbol, section string) {
	if _, ok := results[symbol][section]; ok {
		return
	}
	results.Record(symbol, section, []bool{false})
}

// TryCrawl выполняет секцию символа; ошибка и паника логируются и дальше не идут
func TryCrawl(logger *slog.Logger, symbol, section string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Failure crawling",
				"symbol", symbol,
				"section", section,
				"panic", fmt.Sprint(r),
			)
			ok = false
		}
	}()

	if err := fn(); err != nil {
		logger.Error("Failure crawling",
			"symbol", symbol,
			"section", section,
			"error", err.Error(),
		)
		return false
	}
	return true
}

// saveRun пишет итог и незавершённые секции в БД, если она настроена
func (o *Orchestrator) saveRun(logger *slog.Logger, report *RunReport, mode Mode) {
	if o.repo == nil {
		return
	}

	sum := ""
	if !mode.Debug && !mode.ProcessOnly {
		if h, err := checksum.NewGenerator().FileHash(o.cfg.Paths.Result); err == nil {
			sum = h
		}
	}

	// отдельный контекст: итоги сохраняются и после отмены запуска
	ctx := context.Background()
	run := &storage.RunSummary{
		RunID:          report.RunID,
		Mode:           report.Mode,
		StartedAt:      report.StartedAt,
		FinishedAt:     report.FinishedAt,
		Symbols:        len(report.Symbols),
		FailedSymbols:  len(report.Results),
		FailedSections: report.Results.Sections(),
		CheckSum:       sum,
	}
	if err := o.repo.SaveRun(ctx, run); err != nil {
		logger.Error("Failed to save run", "error", err.Error())
		return
	}

	var failures []storage.SectionFailure
	for _, symbol := range report.Results.Symbols() {
		for section, done := range report.Results[symbol] {
			failures = append(failures, storage.SectionFailure{
				RunID:   report.RunID,
				Symbol:  symbol,
				Section: section,
				Result:  storage.EncodeResult(done),
				Date:    report.FinishedAt,
			})
		}
	}
	saved, err := o.repo.SaveFailures(ctx, failures)
	if err != nil {
		logger.Error("Failed to save failures", "error", err.Error())
		return
	}
	logger.Info("Run saved", "failures", saved)
}
