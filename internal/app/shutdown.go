package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// GracefulShutdown запускает мониторинг OS сигналов и возвращает context для отмены.
// Повторный сигнал завершает процесс сразу.
func GracefulShutdown(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Канал для сигналов ОС
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		sig = <-sigChan
		logger.Warn("Forced exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx, cancel
}
