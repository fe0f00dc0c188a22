package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"stock-crawler/internal/crawler"
	"stock-crawler/internal/profile"
)

// ShardFunc обходит символы шарда одним краулером
type ShardFunc func(ctx context.Context, c Crawler, shard []string)

// Pool запускает по краулеру на шард; шарды не пересекаются
type Pool struct {
	workers    int
	newCrawler CrawlerFactory
	logger     *slog.Logger
}

func NewPool(workers int, newCrawler CrawlerFactory, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers, newCrawler: newCrawler, logger: logger}
}

// Run ждёт все шарды и сливает их результаты и сведения о символах.
// Ошибка только если не поднялся ни один краулер.
func (p *Pool) Run(ctx context.Context, symbols []string, work ShardFunc, opts crawler.Options) (crawler.Results, map[string]profile.Info, error) {
	shards := Shards(symbols, p.workers)

	var (
		mu        sync.Mutex
		results   = make(crawler.Results)
		infos     = make(map[string]profile.Info)
		launchErr []error
	)

	var g errgroup.Group
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			logger := p.logger.With("worker", i)
			logger.Info("Worker started",
				"symbols", len(shard),
				"first", shard[0],
				"last", shard[len(shard)-1],
			)

			c, err := p.newCrawler(ctx, opts)
			if err != nil {
				logger.Error("Failed to start crawler", "error", err.Error())
				mu.Lock()
				launchErr = append(launchErr, fmt.Errorf("worker %d: %w", i, err))
				mu.Unlock()
				return nil
			}
			defer func() {
				if err := c.Close(); err != nil {
					logger.Warn("Failed to close crawler", "error", err.Error())
				}
			}()

			work(ctx, c, shard)

			mu.Lock()
			results.Merge(c.Results())
			for symbol, info := range c.Infos() {
				infos[symbol] = info
			}
			mu.Unlock()

			logger.Info("Worker completed", "failed_symbols", len(c.Results()))
			return nil
		})
	}
	_ = g.Wait()

	if len(shards) > 0 && len(launchErr) == len(shards) {
		return nil, nil, errors.Join(launchErr...)
	}
	return results, infos, nil
}

// Shards делит символы на n непрерывных частей, размеры отличаются не больше чем на 1.
// Пустые части не возвращаются.
func Shards(symbols []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	if n > len(symbols) {
		n = len(symbols)
	}
	out := make([][]string, 0, n)
	size, extra := 0, 0
	if n > 0 {
		size, extra = len(symbols)/n, len(symbols)%n
	}
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		out = append(out, symbols[start:end])
		start = end
	}
	return out
}
