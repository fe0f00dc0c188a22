package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"stock-crawler/internal/apperrors"
)

const envPrefix = "CRAWLER"

// envOverrides перекрывают YAML значения, если заданы
type envOverrides struct {
	LogLevel   string `envconfig:"LOG_LEVEL"`
	ChromePath string `envconfig:"CHROME_PATH"`
	StorageDSN string `envconfig:"STORAGE_DSN"`
	Workers    int    `envconfig:"WORKERS"`
}

func LoadConfig(filePath string) (*Config, error) {
	// .env необязателен
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("failed to load .env", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to open config file", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to parse config", err)
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation error", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) error {
	if err := mergo.Merge(cfg, Default()); err != nil {
		return apperrors.NewConfigError("failed to merge defaults", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if err := envconfig.Process(envPrefix, &cfg.Credentials); err != nil {
		return apperrors.NewConfigError("failed to read credentials from env", err)
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return apperrors.NewConfigError("failed to read env overrides", err)
	}
	if env.LogLevel != "" {
		cfg.Observability.LogLevel = env.LogLevel
	}
	if env.ChromePath != "" {
		cfg.Rod.ChromePath = env.ChromePath
	}
	if env.StorageDSN != "" {
		cfg.Storage.DSN = env.StorageDSN
	}
	if env.Workers > 0 {
		cfg.Crawl.Workers = env.Workers
	}
	return nil
}

// String печатает конфиг без секретов
func (c *Config) String() string {
	return fmt.Sprintf("site=%s workers=%d attempts=%d timeout=%s signin=%t",
		c.Site.BaseURL, c.Crawl.Workers, c.Retry.MaxAttempts, c.GetRodPageTimeout(), c.Rod.RequireSignIn)
}
