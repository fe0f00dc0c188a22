package storage

import (
	"context"
	"strings"
	"time"
)

// RunSummary: итог одного запуска краулера
type RunSummary struct {
	RunID          string
	Mode           string // init, debug, summary, process
	StartedAt      time.Time
	FinishedAt     time.Time
	Symbols        int
	FailedSymbols  int
	FailedSections int
	CheckSum       string // SHA256 файла результатов
}

// SectionFailure: секция символа, которая не выполнилась полностью
type SectionFailure struct {
	RunID   string
	Symbol  string
	Section string
	Result  string // вектор шагов, например "TFT"
	Date    time.Time
}

// Repository интерфейс для хранения итогов запусков
type Repository interface {
	// SaveRun сохраняет или обновляет итог запуска по RunID
	SaveRun(ctx context.Context, run *RunSummary) error

	// SaveFailures сохраняет незавершённые секции запуска, возвращает число записей
	SaveFailures(ctx context.Context, failures []SectionFailure) (int, error)

	// GetLastRunTime получает время окончания последнего запуска режима
	GetLastRunTime(ctx context.Context, mode string) (time.Time, error)

	Close() error
}

// EncodeResult кодирует вектор успехов шагов: T выполнен, F нет
func EncodeResult(done []bool) string {
	var b strings.Builder
	for _, d := range done {
		if d {
			b.WriteByte('T')
		} else {
			b.WriteByte('F')
		}
	}
	return b.String()
}
