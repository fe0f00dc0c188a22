package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/config"
	"stock-crawler/internal/fetcher"
	"stock-crawler/internal/table"
)

const (
	SymbolColumn   = "Symbol"
	ExchangeColumn = "Exchange"
	StockColumn    = "Stock"
	CurrencyColumn = "Currency"
)

// Колонки, которые берутся из листингов бирж
var listingColumns = []string{"Name", "IPOyear", "Sector", "Industry"}

// Info: сведения о символе, собранные краулером в init-режиме
type Info struct {
	Stock    *bool
	Currency string
}

// Profile: таблица символов (индекс Symbol)
type Profile struct {
	path       string
	backupPath string
	fetcher    *fetcher.Fetcher
	logger     *slog.Logger
}

func New(path, backupPath string, f *fetcher.Fetcher, logger *slog.Logger) *Profile {
	return &Profile{
		path:       path,
		backupPath: backupPath,
		fetcher:    f,
		logger:     logger,
	}
}

func (p *Profile) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// CleanSymbol нормализует тикер листинга; false для символов, которые сайт не знает
func CleanSymbol(symbol string) (string, bool) {
	symbol = strings.ReplaceAll(symbol, "^", "-P")
	symbol = strings.ReplaceAll(symbol, ".", "-")
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || strings.Contains(symbol, "~") {
		return "", false
	}
	return symbol, true
}

// Create собирает профиль из листингов бирж, старый профиль уходит в backup
func (p *Profile) Create(ctx context.Context, listings []config.ListingConfig) (*table.Table, error) {
	out := table.New(SymbolColumn, append(append([]string(nil), listingColumns...), ExchangeColumn))

	for _, l := range listings {
		body, err := p.fetcher.Fetch(ctx, l.Source)
		if err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("listing %s unavailable", l.Exchange), err)
		}
		listing, err := table.Read(bytes.NewReader(body))
		if err != nil {
			return nil, apperrors.NewParseError(fmt.Sprintf("listing %s is not CSV", l.Exchange), err)
		}

		added := 0
		for i := range listing.Rows {
			symbol, ok := listingSymbol(listing, i)
			if !ok {
				continue
			}
			values := make([]string, 0, len(out.Columns))
			for _, col := range listingColumns {
				v, _ := lookup(listing, i, col)
				values = append(values, v)
			}
			values = append(values, strings.ToUpper(l.Exchange))
			out.AddRow(symbol, values)
			added++
		}
		p.logger.Info("Listing loaded", "exchange", l.Exchange, "symbols", added)
	}

	sortBySymbol(out)

	if p.Exists() {
		if err := os.Rename(p.path, p.backupPath); err != nil {
			return nil, apperrors.NewStorageError("failed to back up profile", err)
		}
	}
	if err := table.WriteFile(p.path, out); err != nil {
		return nil, apperrors.NewStorageError("failed to write profile", err)
	}
	return out, nil
}

func (p *Profile) Load() (*table.Table, error) {
	t, err := table.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("profile not found", err).WithContext("path", p.path)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read profile", err)
	}
	return t, nil
}

// Symbols возвращает символы профиля. stockOnly оставляет только Stock=True, если колонка есть.
func (p *Profile) Symbols(stockOnly bool) ([]string, error) {
	t, err := p.Load()
	if err != nil {
		return nil, err
	}
	stock := t.Column(StockColumn)
	symbols := make([]string, 0, t.Len())
	for i, s := range t.Index {
		if stockOnly && stock != nil && !isTrue(stock[i]) {
			continue
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

// UpdateFlags записывает Stock и Currency символов, по которым есть сведения.
// Ячейки остальных символов и символов с неопределённым Stock не меняются.
func (p *Profile) UpdateFlags(info map[string]Info) error {
	t, err := p.Load()
	if err != nil {
		return err
	}
	stock := columnOrEmpty(t, StockColumn)
	currency := columnOrEmpty(t, CurrencyColumn)
	for i, s := range t.Index {
		in, ok := info[s]
		if !ok {
			continue
		}
		switch {
		case in.Stock != nil:
			stock[i] = boolText(*in.Stock)
			currency[i] = in.Currency
		case in.Currency != "":
			currency[i] = in.Currency
		}
	}
	t.SetColumn(StockColumn, stock)
	t.SetColumn(CurrencyColumn, currency)

	if err := table.WriteFile(p.path, t); err != nil {
		return apperrors.NewStorageError("failed to write profile", err)
	}
	return nil
}

func columnOrEmpty(t *table.Table, name string) []string {
	if v := t.Column(name); v != nil {
		return v
	}
	return make([]string, t.Len())
}

func listingSymbol(t *table.Table, row int) (string, bool) {
	raw := t.Index[row]
	if !strings.EqualFold(t.IndexName, SymbolColumn) {
		raw, _ = lookup(t, row, SymbolColumn)
	}
	return CleanSymbol(raw)
}

// lookup ищет колонку без учёта регистра (в листингах бывает "industry")
func lookup(t *table.Table, row int, column string) (string, bool) {
	for j, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), column) {
			return strings.TrimSpace(t.Rows[row][j]), true
		}
	}
	return "", false
}

func sortBySymbol(t *table.Table) {
	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return t.Index[order[a]] < t.Index[order[b]] })
	index := make([]string, len(order))
	rows := make([][]string, len(order))
	for i, j := range order {
		index[i], rows[i] = t.Index[j], t.Rows[j]
	}
	t.Index, t.Rows = index, rows
}

func isTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
