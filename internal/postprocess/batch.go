package postprocess

import (
	"errors"
	"fmt"
	"log/slog"

	"stock-crawler/internal/config"
	"stock-crawler/internal/normalize"
	"stock-crawler/internal/table"
)

// Датасеты в порядке обработки
var (
	historyDatasets   = []string{"dividend", "history", "stock_split"}
	statementDatasets = []string{"income_statement", "balance_sheet", "cash_flow"}
	convertDatasets   = []string{"income_statement", "balance_sheet", "cash_flow", "statistics", "summary"}
)

const (
	statisticsDataset = "statistics"
	summaryDataset    = "summary"
	tmpDataset        = "tmp"
	tmpOriginalName   = "tmp_original.csv"
)

type Options struct {
	Init  bool
	Debug bool
}

// Batch переводит сырые файлы символов в итоговый вид:
// транспонирование, сортировка, переименование колонок, типы, годовые отчёты.
type Batch struct {
	store       *table.Store
	normalizer  *normalize.Normalizer
	mapping     *config.Mapping
	mappingPath string
	logger      *slog.Logger
	opts        Options
}

func NewBatch(
	store *table.Store,
	normalizer *normalize.Normalizer,
	mapping *config.Mapping,
	mappingPath string,
	logger *slog.Logger,
	opts Options,
) *Batch {
	return &Batch{
		store:       store,
		normalizer:  normalizer,
		mapping:     mapping,
		mappingPath: mappingPath,
		logger:      logger,
		opts:        opts,
	}
}

// Run: текстовый проход, обновление mapping (init/debug), приведение типов
func (b *Batch) Run(symbols []string) error {
	b.logger.Info("Post-processing started", "symbols", len(symbols))

	var errs []error
	if err := b.ProcessText(symbols); err != nil {
		errs = append(errs, err)
	}
	if b.opts.Init || b.opts.Debug {
		if err := b.UpdateMapping(symbols); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.ConvertAll(symbols); err != nil {
		errs = append(errs, err)
	}

	b.logger.Info("Post-processing completed", "symbols", len(symbols), "errors", len(errs))
	return errors.Join(errs...)
}

// ProcessText обрабатывает текстовое содержимое файлов каждого символа.
// Ошибка символа логируется, обработка продолжается.
func (b *Batch) ProcessText(symbols []string) error {
	var errs []error
	for _, symbol := range symbols {
		if err := b.processSymbol(symbol); err != nil {
			b.logger.Error("Text processing failed",
				"symbol", symbol,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Batch) processSymbol(symbol string) error {
	// история: даты по убыванию, строки без даты удаляются
	for _, ds := range historyDatasets {
		t, err := b.load(ds, symbol)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		b.normalizer.DropUndated(t)
		if err := b.save(ds, symbol, t, false); err != nil {
			return err
		}
	}

	// отчёты: выгрузка сайта (строка на показатель) переворачивается один раз
	for _, ds := range statementDatasets {
		t, err := b.load(ds, symbol)
		if err != nil {
			return err
		}
		if t == nil || normalize.IsDateIndexed(t) {
			continue
		}
		t = normalize.Transpose(t)
		b.normalizer.DropUndated(t)
		t.Columns = normalize.NormalizeColumns(t.Columns)
		if err := b.save(ds, symbol, t, false); err != nil {
			return err
		}
	}

	if err := b.processStatistics(symbol); err != nil {
		return err
	}

	t, err := b.load(summaryDataset, symbol)
	if err != nil {
		return err
	}
	if t != nil {
		t.Columns = normalize.NormalizeColumns(t.Columns)
		if err := b.save(summaryDataset, symbol, t, false); err != nil {
			return err
		}
	}
	return nil
}

// processStatistics переворачивает valuation measures и вливает в них tmp.
// Без tmp файл остаётся как есть до следующего запуска.
func (b *Batch) processStatistics(symbol string) error {
	t, err := b.load(statisticsDataset, symbol)
	if err != nil {
		return err
	}
	if t == nil || t.Len() == 0 || normalize.IsDateIndexed(t) {
		return nil
	}

	t = normalize.Transpose(t)
	b.normalizer.DropUndated(t)

	merged, err := b.MergeStatistics(symbol, t)
	if err != nil || merged == nil {
		return err
	}
	merged.Columns = normalize.NormalizeColumns(merged.Columns)
	return b.save(statisticsDataset, symbol, merged, false)
}

// MergeStatistics добавляет колонки последней строки tmp к самой свежей строке статистики.
// Пустая статистика даёт одну строку tmp за сегодня. Использованный tmp уходит в original/.
// nil без ошибки, если tmp нет.
func (b *Batch) MergeStatistics(symbol string, statistics *table.Table) (*table.Table, error) {
	tmp, err := b.load(tmpDataset, symbol)
	if err != nil || tmp == nil || tmp.Len() == 0 {
		if err == nil {
			b.logger.Warn("No tmp statistics to merge", "symbol", symbol)
		}
		return nil, err
	}

	var merged *table.Table
	if statistics.Len() > 0 {
		merged = statistics.Clone()
		for j, col := range tmp.Columns {
			values := merged.Column(col)
			if values == nil {
				values = make([]string, merged.Len())
			}
			// значение tmp не перетирает уже скачанное
			if values[0] == "" {
				values[0] = tmp.Rows[0][j]
			}
			merged.SetColumn(col, values)
		}
	} else {
		merged = table.New(table.DateColumn, tmp.Columns)
		merged.AddRow(b.store.Today().Format(table.DateLayout), tmp.Rows[0])
	}

	if !b.opts.Debug {
		if err := b.store.Archive(tmpDataset, symbol, tmpOriginalName); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// UpdateMapping дописывает в col2filename новые колонки отчётов и сохраняет mapping
func (b *Batch) UpdateMapping(symbols []string) error {
	total := 0
	for _, symbol := range symbols {
		for _, ds := range statementDatasets {
			t, err := b.load(ds, symbol)
			if err != nil {
				return err
			}
			if t == nil || !normalize.IsDateIndexed(t) {
				continue
			}
			for _, col := range b.mapping.UpdateColumns(ds, t.Columns) {
				b.logger.Info("Mapping column added",
					"symbol", symbol,
					"column", col,
					"file", ds,
				)
				total++
			}
		}
	}

	if err := b.mapping.Save(b.mappingPath); err != nil {
		return err
	}
	b.logger.Info("Mapping updated", "added", total, "path", b.mappingPath)
	return nil
}

// ConvertAll приводит колонки к типам из col2dtype и строит годовые отчёты
func (b *Batch) ConvertAll(symbols []string) error {
	var errs []error
	for _, symbol := range symbols {
		if err := b.convertSymbol(symbol); err != nil {
			b.logger.Error("Type conversion failed",
				"symbol", symbol,
				"error", err.Error(),
			)
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Batch) convertSymbol(symbol string) error {
	converted := make(map[string]*table.Table, len(convertDatasets))
	for _, ds := range convertDatasets {
		t, err := b.load(ds, symbol)
		if err != nil {
			return err
		}
		if t == nil || !normalize.IsDateIndexed(t) {
			continue
		}
		b.normalizer.ConvertTypes(t)
		if err := b.save(ds, symbol, t, false); err != nil {
			return err
		}
		converted[ds] = t
		b.logger.Debug("Dataset processed", "symbol", symbol, "dataset", ds)
	}

	fiscalYearEnd := b.normalizer.FiscalYearEnd(converted[statisticsDataset])
	for _, ds := range statementDatasets {
		t := converted[ds]
		if t == nil {
			continue
		}
		yearly := normalize.QuarterlyToYearly(t, fiscalYearEnd)
		if yearly == nil {
			continue
		}
		if err := b.save(ds, symbol, yearly, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) load(dataset, symbol string) (*table.Table, error) {
	return b.store.Load(dataset, symbol, b.opts.Debug)
}

func (b *Batch) save(dataset, symbol string, t *table.Table, yearly bool) error {
	return b.store.Save(dataset, symbol, t, table.SaveOptions{
		Init:   b.opts.Init,
		Debug:  b.opts.Debug,
		Yearly: yearly,
	})
}
