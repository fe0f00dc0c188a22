package observability

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"stock-crawler/internal/config"
)

// RunMarker отделяет запуски в лог-файле
const RunMarker = "=========================================="

// NewLogger создаёт slog логгер: stdout + лог-файл с ротацией.
// В debug-режиме файл не пишется, только stdout.
func NewLogger(cfg config.ObservabilityConfig, debug bool) (*slog.Logger, io.Closer, error) {
	level := parseLogLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	if debug || cfg.LogPath == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   true,
	}

	output := io.MultiWriter(os.Stdout, file)
	return slog.New(slog.NewTextHandler(output, opts)), file, nil
}

// NewNopLogger для тестов
func NewNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
