package normalize

import (
	"strings"

	"stock-crawler/internal/config"
	"stock-crawler/internal/scraper"
	"stock-crawler/internal/table"
)

const earningsDate = "Earnings Date"

// Normalizer приводит текст со страниц к типизированным колонкам по mapping
type Normalizer struct {
	mapping *config.Mapping
}

func NewNormalizer(mapping *config.Mapping) *Normalizer {
	return &Normalizer{mapping: mapping}
}

// ParseRow разбирает строку таблицы "колонка|...|значение".
// Для Earnings Date значением считаются все токены после первого (диапазон дат).
func ParseRow(text string) (column, value string) {
	tokens := strings.Split(text, scraper.RowDelimiter)
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}
	column = tokens[0]
	if len(tokens) == 1 {
		return column, ""
	}
	if column == earningsDate {
		return column, strings.Join(tokens[1:], " ")
	}
	return column, tokens[len(tokens)-1]
}

// ParseRows собирает строки в запись; пустые колонки пропускаются
func ParseRows(rec *table.Record, rows []string) {
	for _, row := range rows {
		col, val := ParseRow(row)
		if col == "" {
			continue
		}
		rec.Set(col, val)
	}
}
