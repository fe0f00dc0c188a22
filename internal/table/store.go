package table

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/checksum"
	"stock-crawler/internal/paths"
)

// Граница торгового дня: до 08:00 данные относятся к предыдущей дате
const marketDayCutoffHour = 8

// MarketDay возвращает дату, к которой относятся данные, снятые в момент now
func MarketDay(now time.Time) time.Time {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if now.Hour() < marketDayCutoffHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

type SaveOptions struct {
	Init     bool
	Debug    bool
	Yearly   bool
	NoBackup bool
}

// Store читает и пишет датасеты символов с политикой снапшотов:
// перед перезаписью файл копируется в backup/, в init-режиме однократно в original/.
type Store struct {
	resolver *paths.Resolver
	checksum *checksum.Generator
	logger   *slog.Logger
	now      func() time.Time
}

func NewStore(resolver *paths.Resolver, logger *slog.Logger) *Store {
	return &Store{
		resolver: resolver,
		checksum: checksum.NewGenerator(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock подменяет часы (для тестов)
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// InLocation переводит часы в таймзону loc: торговый день считается в ней
func (s *Store) InLocation(loc *time.Location) *Store {
	now := s.now
	s.now = func() time.Time { return now().In(loc) }
	return s
}

func (s *Store) Resolver() *paths.Resolver {
	return s.resolver
}

// Today возвращает текущий торговый день
func (s *Store) Today() time.Time {
	return MarketDay(s.now())
}

func (s *Store) Path(dataset, symbol string, debug, yearly bool) (string, error) {
	return s.resolver.Resolve(dataset, symbol, paths.Options{Debug: debug, Yearly: yearly})
}

func (s *Store) Exists(dataset, symbol string, debug bool) bool {
	p, err := s.Path(dataset, symbol, debug, false)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Load читает датасет; (nil, nil) если файла нет
func (s *Store) Load(dataset, symbol string, debug bool) (*Table, error) {
	return s.load(dataset, symbol, debug, false)
}

func (s *Store) LoadYearly(dataset, symbol string, debug bool) (*Table, error) {
	return s.load(dataset, symbol, debug, true)
}

func (s *Store) load(dataset, symbol string, debug, yearly bool) (*Table, error) {
	p, err := s.Path(dataset, symbol, debug, yearly)
	if err != nil {
		return nil, err
	}
	t, err := ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read dataset", err).WithContext("path", p)
	}
	return t, nil
}

// MergeAndSave добавляет свежие строки к файлу датасета.
// Строки файла за сегодняшний торговый день заменяются, даты уникальны, порядок по убыванию.
func (s *Store) MergeAndSave(dataset, symbol string, fresh *Table, opts SaveOptions) error {
	p, err := s.Path(dataset, symbol, opts.Debug, false)
	if err != nil {
		return err
	}

	existing, err := ReadFile(p)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewStorageError("failed to read dataset", err).WithContext("path", p)
	}

	merged := fresh.Clone()
	merged.NormalizeDateIndex()
	if existing != nil {
		today := s.Today().Format(DateLayout)
		old := existing.Clone()
		old.NormalizeDateIndex()
		old.Filter(func(i int) bool { return old.Index[i] != today })
		merged = Concat(merged, old)
	}
	merged.IndexName = DateColumn
	merged.DedupeIndex()
	merged.SortByDateDesc()

	if err := s.snapshot(dataset, symbol, p, opts); err != nil {
		return err
	}
	if err := WriteFile(p, merged); err != nil {
		return apperrors.NewStorageError("failed to write dataset", err).WithContext("path", p)
	}

	s.logger.Debug("Dataset merged",
		"dataset", dataset,
		"symbol", symbol,
		"rows", merged.Len(),
		"path", p,
	)
	return nil
}

// Save перезаписывает датасет целиком с той же политикой снапшотов
func (s *Store) Save(dataset, symbol string, t *Table, opts SaveOptions) error {
	p, err := s.Path(dataset, symbol, opts.Debug, opts.Yearly)
	if err != nil {
		return err
	}
	if err := s.snapshot(dataset, symbol, p, opts); err != nil {
		return err
	}
	if err := WriteFile(p, t); err != nil {
		return apperrors.NewStorageError("failed to write dataset", err).WithContext("path", p)
	}
	return nil
}

// MoveIn перемещает скачанный файл на место датасета
func (s *Store) MoveIn(src, dataset, symbol string, debug bool) (string, error) {
	p, err := s.Path(dataset, symbol, debug, false)
	if err != nil {
		return "", err
	}
	if err := moveFile(src, p); err != nil {
		return "", apperrors.NewStorageError("failed to move download", err).WithContext("path", p)
	}
	return p, nil
}

// Archive перемещает файл датасета в original/<name> символа
func (s *Store) Archive(dataset, symbol, name string) error {
	p, err := s.Path(dataset, symbol, false, false)
	if err != nil {
		return err
	}
	dst := s.resolver.OriginalFile(symbol, name)
	if err := moveFile(p, dst); err != nil {
		return apperrors.NewStorageError("failed to archive dataset", err).WithContext("path", p)
	}
	return nil
}

func (s *Store) snapshot(dataset, symbol, current string, opts SaveOptions) error {
	if opts.Debug {
		return nil
	}
	if _, err := os.Stat(current); err != nil {
		return nil
	}

	if opts.Init {
		original, err := s.resolver.Resolve(dataset, symbol, paths.Options{Original: true, Yearly: opts.Yearly})
		if err != nil {
			return err
		}
		if _, err := os.Stat(original); errors.Is(err, fs.ErrNotExist) {
			if err := copyFile(current, original); err != nil {
				return apperrors.NewStorageError("failed to store original copy", err).WithContext("path", original)
			}
		}
	}

	if opts.NoBackup {
		return nil
	}
	backup, err := s.resolver.Resolve(dataset, symbol, paths.Options{Backup: true, Yearly: opts.Yearly})
	if err != nil {
		return err
	}
	if err := copyFile(current, backup); err != nil {
		return apperrors.NewStorageError("failed to store backup copy", err).WithContext("path", backup)
	}
	if err := s.checksum.VerifyCopy(current, backup); err != nil {
		return apperrors.NewStorageError("backup copy verification failed", err).WithContext("path", backup)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// другой раздел: копируем и удаляем
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return os.Remove(src)
}
