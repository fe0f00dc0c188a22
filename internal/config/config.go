package config

import (
	"fmt"
	"time"
)

type Config struct {
	Site          SiteConfig          `yaml:"site"`
	Rod           RodConfig           `yaml:"rod"`
	Retry         RetryConfig         `yaml:"retry"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Paths         PathsConfig         `yaml:"paths"`
	Listings      []ListingConfig     `yaml:"listings"`
	Crawl         CrawlConfig         `yaml:"crawl"`
	Storage       StorageConfig       `yaml:"storage"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`

	// Заполняется только из окружения (.env / CRAWLER_*)
	Credentials Credentials `yaml:"-"`
}

type SiteConfig struct {
	BaseURL   string `yaml:"base_url"`
	SignInURL string `yaml:"signin_url"`
}

type RodConfig struct {
	ChromePath    string `yaml:"chrome_path"`
	UserAgent     string `yaml:"user_agent"`
	DownloadDir   string `yaml:"download_dir"`
	PageTimeoutS  int    `yaml:"page_timeout_s"`
	StepPauseMS   int    `yaml:"step_pause_ms"`
	RebootPauseS  int    `yaml:"reboot_pause_s"`
	RequireSignIn bool   `yaml:"require_signin"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type RateLimitConfig struct {
	RPM int `yaml:"rpm"`
}

type PathsConfig struct {
	DataDir       string `yaml:"data_dir"`
	CompanyDir    string `yaml:"company_dir"`
	Profile       string `yaml:"profile"`
	ProfileBackup string `yaml:"profile_backup"`
	Mapping       string `yaml:"mapping"`
	Selectors     string `yaml:"selectors"`
	Result        string `yaml:"result"`
}

// ListingConfig описывает один источник листинга биржи: локальный CSV или URL
type ListingConfig struct {
	Exchange string `yaml:"exchange"`
	Source   string `yaml:"source"`
}

type CrawlConfig struct {
	Workers      int `yaml:"workers"`
	DebugSymbols int `yaml:"debug_symbols"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type SchedulerConfig struct {
	Mode     string `yaml:"mode"`
	CronExpr string `yaml:"cron_expr"`
	Timezone string `yaml:"timezone"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	MetricsPath   string `yaml:"metrics_path"`
}

// Credentials для входа на сайт в init-режиме
type Credentials struct {
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
}

// Default возвращает значения, которыми дополняется YAML
func Default() Config {
	return Config{
		Site: SiteConfig{
			BaseURL:   "https://finance.yahoo.com",
			SignInURL: "https://login.yahoo.com/",
		},
		Rod: RodConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			DownloadDir:  "downloads",
			PageTimeoutS: 5,
			StepPauseMS:  3000,
			RebootPauseS: 600,
		},
		Retry: RetryConfig{MaxAttempts: 3},
		Backoff: BackoffConfig{
			MinMS:     500,
			MaxMS:     5000,
			JitterPct: 20,
		},
		RateLimit: RateLimitConfig{RPM: 30},
		Paths: PathsConfig{
			DataDir:       "data",
			CompanyDir:    "data/company",
			Profile:       "data/stock_profile.csv",
			ProfileBackup: "data/stock_profile_backup.csv",
			Mapping:       "configs/mapping.json",
			Selectors:     "configs/selectors.yaml",
			Result:        "crawler/result.json",
		},
		Listings: []ListingConfig{
			{Exchange: "AMEX", Source: "data/amex.csv"},
			{Exchange: "NASDAQ", Source: "data/nasdaq.csv"},
			{Exchange: "NYSE", Source: "data/nyse.csv"},
		},
		Crawl: CrawlConfig{
			Workers:      1,
			DebugSymbols: 5,
		},
		Storage: StorageConfig{CommandTimeoutMS: 5000},
		Scheduler: SchedulerConfig{
			Mode:     "cron",
			CronExpr: "0 19 * * 1-5",
			Timezone: "Local",
		},
		Observability: ObservabilityConfig{
			LogPath:       "crawler/log.txt",
			LogLevel:      "info",
			LogMaxSizeMB:  50,
			LogMaxBackups: 5,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Rod.PageTimeoutS <= 0 {
		return fmt.Errorf("rod.page_timeout_s must be > 0")
	}
	if c.Rod.StepPauseMS < 0 {
		return fmt.Errorf("rod.step_pause_ms must be >= 0")
	}
	if c.Rod.RebootPauseS < 0 {
		return fmt.Errorf("rod.reboot_pause_s must be >= 0")
	}
	if c.Rod.DownloadDir == "" {
		return fmt.Errorf("rod.download_dir is required")
	}
	if c.Rod.RequireSignIn && c.Site.SignInURL == "" {
		return fmt.Errorf("site.signin_url is required when rod.require_signin is true")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.RateLimit.RPM <= 0 {
		return fmt.Errorf("rate_limit.rpm must be > 0")
	}
	if c.Paths.CompanyDir == "" {
		return fmt.Errorf("paths.company_dir is required")
	}
	if c.Paths.Profile == "" {
		return fmt.Errorf("paths.profile is required")
	}
	if c.Paths.Mapping == "" {
		return fmt.Errorf("paths.mapping is required")
	}
	for i, l := range c.Listings {
		if l.Exchange == "" || l.Source == "" {
			return fmt.Errorf("listings[%d]: exchange and source are required", i)
		}
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Storage.Driver != "" && c.Storage.Driver != "mssql" {
		return fmt.Errorf("storage.driver must be empty or 'mssql'")
	}
	if c.Storage.Driver != "" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required when storage.driver is set")
	}
	if c.Scheduler.Mode != "cron" && c.Scheduler.Mode != "oneshot" {
		return fmt.Errorf("scheduler.mode must be 'cron' or 'oneshot'")
	}
	if c.Scheduler.Mode == "cron" && c.Scheduler.CronExpr == "" {
		return fmt.Errorf("scheduler.cron_expr must be set when mode is 'cron'")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// Getters
func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Rod.PageTimeoutS) * time.Second
}

func (c *Config) GetRodStepPause() time.Duration {
	return time.Duration(c.Rod.StepPauseMS) * time.Millisecond
}

func (c *Config) GetRodRebootPause() time.Duration {
	return time.Duration(c.Rod.RebootPauseS) * time.Second
}

func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

// GetSchedulerLocation возвращает таймзону расписания; пустая или "Local" = time.Local
func (c *Config) GetSchedulerLocation() (*time.Location, error) {
	if c.Scheduler.Timezone == "" || c.Scheduler.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Scheduler.Timezone)
}
