package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler запускает job по cron-выражению в заданной таймзоне
type Scheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger
}

func NewScheduler(expr string, location *time.Location, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{expr: expr, location: location, logger: logger}
}

// Start блокирует до отмены ctx, затем дожидается выполняющегося job.
// Перекрывающиеся запуски не блокируются.
func (s *Scheduler) Start(ctx context.Context, job func(ctx context.Context)) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger{logger: s.logger}),
	)

	id, err := c.AddFunc(s.expr, func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("Scheduled run started", "cron", s.expr)
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.expr, err)
	}

	c.Start()
	s.logger.Info("Scheduler started",
		"cron", s.expr,
		"timezone", s.location.String(),
		"next", c.Entry(id).Next.Format(time.RFC3339),
	)

	<-ctx.Done()
	s.logger.Info("Scheduler stopping")
	<-c.Stop().Done()
	return nil
}

// cronLogger направляет лог cron в slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err.Error())...)
}
