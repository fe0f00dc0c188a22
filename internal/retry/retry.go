package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"stock-crawler/internal/apperrors"
)

// Class: что делать с ошибкой попытки
type Class int

const (
	Fatal Class = iota
	Retry
	Reboot
)

func (c Class) String() string {
	switch c {
	case Retry:
		return "retry"
	case Reboot:
		return "reboot"
	}
	return "fatal"
}

// ErrExhausted возвращается Run, когда попытки закончились
var ErrExhausted = errors.New("retry attempts exhausted")

// Classify: таймаут страницы ретраится, сломанная сессия требует reboot, остальное фатально
func Classify(err error) Class {
	switch {
	case apperrors.IsTransientPage(err):
		return Retry
	case apperrors.IsSessionStale(err):
		return Reboot
	}
	return Fatal
}

type Backoff struct {
	Min       time.Duration
	Max       time.Duration
	JitterPct int
}

// Delay: экспоненциальный рост min*2^(attempt-1) с ограничением max и джиттером ±JitterPct%
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Min <= 0 || attempt <= 0 {
		return 0
	}
	minMS := float64(b.Min.Milliseconds())
	maxMS := float64(b.Max.Milliseconds())

	exponential := minMS * math.Pow(2, float64(attempt-1))
	if maxMS > 0 && exponential > maxMS {
		exponential = maxMS
	}

	jitterRange := exponential * float64(b.JitterPct) / 100
	jitter := (rand.Float64() - 0.5) * 2 * jitterRange
	finalMS := exponential + jitter
	if finalMS < minMS {
		finalMS = minMS
	}
	return time.Duration(finalMS) * time.Millisecond
}

// Policy: ограниченный ретрай с классификацией ошибок
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	Classify    func(error) Class

	// Recover вызывается для Reboot (перезапуск сессии). Ошибка Recover фатальна.
	Recover func(ctx context.Context) error
	// BeforeRetry вызывается перед каждой попыткой, кроме первой (например reload страницы)
	BeforeRetry func(ctx context.Context, attempt int) error
	// OnError получает каждую ошибку попытки для логирования
	OnError func(step, attempt int, class Class, err error)
}

// Step: одна подзадача секции
type Step func(ctx context.Context) error

// Run выполняет op до успеха, фатальной ошибки или исчерпания попыток
func (p Policy) Run(ctx context.Context, op Step) error {
	done, err := p.RunSteps(ctx, []Step{op})
	if err != nil {
		return err
	}
	if !done[0] {
		return ErrExhausted
	}
	return nil
}

// RunSteps выполняет шаги секции. Каждая попытка повторяет только невыполненные шаги.
// Возвращает вектор успехов по шагам; ошибка только для фатальных случаев и отмены.
func (p Policy) RunSteps(ctx context.Context, steps []Step) ([]bool, error) {
	classify := p.Classify
	if classify == nil {
		classify = Classify
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	done := make([]bool, len(steps))
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Backoff.Delay(attempt-1)); err != nil {
				return done, err
			}
			if p.BeforeRetry != nil {
				if err := p.BeforeRetry(ctx, attempt); err != nil {
					if classify(err) == Fatal {
						return done, fmt.Errorf("prepare attempt %d: %w", attempt, err)
					}
					if p.OnError != nil {
						p.OnError(-1, attempt, classify(err), err)
					}
				}
			}
		}

		for i, step := range steps {
			if done[i] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return done, err
			}

			err := step(ctx)
			if err == nil {
				done[i] = true
				continue
			}

			class := classify(err)
			if p.OnError != nil {
				p.OnError(i, attempt, class, err)
			}
			switch class {
			case Fatal:
				return done, err
			case Reboot:
				if p.Recover == nil {
					return done, err
				}
				if rerr := p.Recover(ctx); rerr != nil {
					return done, fmt.Errorf("recover after %v: %w", err, rerr)
				}
			}
		}

		if allDone(done) {
			break
		}
	}
	return done, nil
}

func allDone(done []bool) bool {
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
