package normalize

import (
	"strings"
	"time"

	"stock-crawler/internal/config"
	"stock-crawler/internal/table"
)

// Форматы после замены названия месяца на цифру
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1 2, 2006",
	"1 2 2006",
	"1-2-2006",
}

// ParseDate разбирает дату сайта ("Sep 30, 2020", "9/30/2020", "2020-09-30")
func ParseDate(text string, months []config.MonthDigit) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, m := range months {
		if strings.Contains(text, m.Name) {
			text = strings.ReplaceAll(text, m.Name, m.Digit)
			break
		}
	}

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, text); err == nil {
			y, mo, day := d.Date()
			return time.Date(y, mo, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) ParseDate(text string) (time.Time, bool) {
	return ParseDate(text, n.mapping.Months())
}

// DropUndated приводит индекс к ISO дате, выкидывает строки без даты (например ttm)
// и сортирует по убыванию
func (n *Normalizer) DropUndated(t *table.Table) {
	months := n.mapping.Months()
	for i, idx := range t.Index {
		if d, ok := ParseDate(idx, months); ok {
			t.Index[i] = d.Format(table.DateLayout)
		} else {
			t.Index[i] = ""
		}
	}
	t.Filter(func(i int) bool { return t.Index[i] != "" })
	t.IndexName = table.DateColumn
	t.DedupeIndex()
	t.SortByDateDesc()
}

// FiscalYearEnd читает месяц окончания финансового года из статистики; 0 если неизвестен
func (n *Normalizer) FiscalYearEnd(statistics *table.Table) time.Month {
	if statistics == nil {
		return 0
	}
	for _, v := range statistics.Column("Fiscal Year Ends") {
		if d, ok := n.ParseDate(v); ok {
			return d.Month()
		}
	}
	return 0
}
