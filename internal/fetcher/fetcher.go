package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stock-crawler/internal/config"
)

const defaultTimeout = 60 * time.Second

// Fetcher загружает исходные файлы (листинги бирж): http(s) через resty, иначе с диска
type Fetcher struct {
	client *resty.Client
	cfg    *config.Config
	logger *slog.Logger
}

func NewFetcher(cfg *config.Config, logger *slog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRetryCount(cfg.Retry.MaxAttempts-1).
		SetRetryWaitTime(cfg.GetBackoffMin()).
		SetRetryMaxWaitTime(cfg.GetBackoffMax()).
		SetHeader("User-Agent", cfg.Rod.UserAgent).
		SetHeader("Accept", "text/csv,application/octet-stream;q=0.9,*/*;q=0.8").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			// Retry on 5xx or 429
			return r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests
		})

	return &Fetcher{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch возвращает содержимое источника
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if !isRemote(source) {
		body, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		return body, nil
	}

	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(source)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", source, resp.Status())
	}

	f.logger.Debug("Fetched",
		"url", source,
		"status", resp.StatusCode(),
		"bytes", len(resp.Body()),
		"elapsed", time.Since(start),
	)
	return resp.Body(), nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
