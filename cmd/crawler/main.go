package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stock-crawler/internal/app"
	"stock-crawler/internal/browser"
	"stock-crawler/internal/config"
	"stock-crawler/internal/crawler"
	"stock-crawler/internal/fetcher"
	"stock-crawler/internal/normalize"
	"stock-crawler/internal/observability"
	"stock-crawler/internal/paths"
	"stock-crawler/internal/postprocess"
	"stock-crawler/internal/profile"
	"stock-crawler/internal/scraper"
	"stock-crawler/internal/storage"
	"stock-crawler/internal/storage/mssql"
	"stock-crawler/internal/table"
)

type flags struct {
	configPath      string
	init            bool
	debug           bool
	noSchedule      bool
	overrideProfile bool
	processOnly     bool
	forceSummary    bool
	limit           int
	headless        bool
	workers         int
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:           "crawler",
		Short:         "Yahoo Finance crawler: summary, history, financials, statistics per symbol",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "configs/config.yaml", "path to config file")

	fl := root.Flags()
	fl.BoolVar(&f.init, "init", false, "crawl all sections of every symbol and refresh profile flags")
	fl.BoolVar(&f.debug, "debug", false, "crawl a few symbols into debug/ with verbose logs")
	fl.BoolVar(&f.noSchedule, "no-schedule", false, "exit instead of starting the daily scheduler")
	fl.BoolVar(&f.overrideProfile, "override-profile", false, "rebuild the symbol profile from exchange listings")
	fl.BoolVar(&f.processOnly, "process-only", false, "only post-process already downloaded files")
	fl.BoolVar(&f.forceSummary, "force-summary", false, "crawl summaries once before scheduling")
	fl.IntVar(&f.limit, "k", 0, "restrict to the last N symbols (0 = all)")
	fl.BoolVar(&f.headless, "headless", true, "run the browser headless (init always shows the browser)")
	fl.IntVar(&f.workers, "workers", 0, "number of browser workers (0 = from config)")

	root.AddCommand(newGetCommand(&f.configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env: всё, что собирается из конфига при старте
type env struct {
	cfg        *config.Config
	mapping    *config.Mapping
	location   *time.Location
	store      *table.Store
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	logCloser  io.Closer
}

func setup(configPath string, debug bool) (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := observability.NewLogger(cfg.Observability, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	mapping, err := config.LoadMapping(cfg.Paths.Mapping)
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to load mapping: %w", err)
	}

	resolver, err := paths.NewResolver(mapping, cfg.Paths.CompanyDir, cfg.Paths.Profile)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	// торговый день считается в той же таймзоне, что и расписание
	location, err := cfg.GetSchedulerLocation()
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}

	return &env{
		cfg:        cfg,
		mapping:    mapping,
		location:   location,
		store:      table.NewStore(resolver, logger).InLocation(location),
		normalizer: normalize.NewNormalizer(mapping),
		logger:     logger,
		logCloser:  closer,
	}, nil
}

func run(f flags) error {
	e, err := setup(f.configPath, f.debug)
	if err != nil {
		return err
	}
	defer func() { _ = e.logCloser.Close() }()

	cfg, logger := e.cfg, e.logger
	logger.Info(observability.RunMarker)
	logger.Info("Crawler starting",
		"config", f.configPath,
		"settings", cfg.String(),
		"init", f.init,
		"debug", f.debug,
		"process_only", f.processOnly,
		"k", f.limit,
	)

	ctx, cancel := app.GracefulShutdown(logger)
	defer cancel()

	selectors, err := cfg.LoadSelectorsOrDefault()
	if err != nil {
		return fmt.Errorf("failed to load selectors: %w", err)
	}
	scr := scraper.NewScraper(selectors)
	metrics := observability.NewMetrics()

	prof := profile.New(cfg.Paths.Profile, cfg.Paths.ProfileBackup, fetcher.NewFetcher(cfg, logger), logger)

	var repo storage.Repository
	if cfg.Storage.Driver == "mssql" {
		r, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer func() { _ = r.Close() }()
		repo = r
	}

	newCrawler := func(ctx context.Context, opts crawler.Options) (app.Crawler, error) {
		launcher := browser.NewRodLauncher(browser.RodOptions{
			Bin:         cfg.Rod.ChromePath,
			Headless:    f.headless && !opts.Init,
			UserAgent:   cfg.Rod.UserAgent,
			DownloadDir: cfg.Rod.DownloadDir,
			Timeout:     cfg.GetRodPageTimeout(),
			RPM:         cfg.RateLimit.RPM,
		}, logger)
		return crawler.NewDriver(ctx, crawler.Deps{
			Config:   cfg,
			Launcher: launcher,
			Scraper:  scr,
			Store:    e.store,
			Mapping:  e.mapping,
			Logger:   logger,
			Metrics:  metrics,
		}, opts)
	}
	newPostProcessor := func(opts postprocess.Options) app.PostProcessor {
		return postprocess.NewBatch(e.store, e.normalizer, e.mapping, cfg.Paths.Mapping, logger, opts)
	}

	orch := app.NewOrchestrator(app.Deps{
		Config:           cfg,
		Logger:           logger,
		Profile:          prof,
		NewCrawler:       newCrawler,
		NewPostProcessor: newPostProcessor,
		Repository:       repo,
		Metrics:          metrics,
	}, app.Options{Limit: f.limit, Workers: f.workers})

	initMode := f.init
	// Профиль символов: создаётся из листингов, если его нет
	if !prof.Exists() || f.overrideProfile {
		logger.Info("Creating symbol profile", "listings", len(cfg.Listings))
		if _, err := prof.Create(ctx, cfg.Listings); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		initMode = true
	}

	// Полный обход и постобработка
	if initMode || f.debug || f.processOnly {
		mode := app.Mode{Init: initMode, Debug: f.debug, ProcessOnly: f.processOnly}
		if _, err := orch.Run(ctx, mode); err != nil {
			return interrupted(logger, err)
		}
	}

	if f.forceSummary {
		if _, err := orch.Run(ctx, app.Mode{Summary: true}); err != nil {
			return interrupted(logger, err)
		}
	}

	if f.debug || f.noSchedule || cfg.Scheduler.Mode != "cron" {
		logger.Info("Crawler finished")
		return nil
	}

	scheduler := app.NewScheduler(cfg.Scheduler.CronExpr, e.location, logger)
	return scheduler.Start(ctx, func(ctx context.Context) {
		logger.Info(observability.RunMarker)
		if _, err := orch.Run(ctx, app.Mode{Summary: true}); err != nil {
			logger.Error("Scheduled run failed", "error", err.Error())
		}
	})
}

// interrupted: остановка по сигналу не считается ошибкой
func interrupted(logger *slog.Logger, err error) error {
	if errors.Is(err, context.Canceled) {
		logger.Info("Crawler stopped")
		return nil
	}
	return err
}
