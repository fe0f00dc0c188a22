package normalize

import (
	"strings"

	"stock-crawler/internal/table"
)

// Transpose переворачивает выгрузку сайта (строка на показатель, колонка на период)
// в таблицу со строкой на период. Индекс получает имя Date.
func Transpose(t *table.Table) *table.Table {
	columns := make([]string, len(t.Index))
	for i, idx := range t.Index {
		columns[i] = strings.TrimSpace(idx)
	}

	out := table.New(table.DateColumn, columns)
	for j, period := range t.Columns {
		values := make([]string, len(t.Index))
		for i := range t.Index {
			values[i] = t.Rows[i][j]
		}
		out.AddRow(strings.TrimSpace(period), values)
	}
	return out
}

// IsDateIndexed: файл уже прошёл транспонирование
func IsDateIndexed(t *table.Table) bool {
	return t != nil && t.IndexName == table.DateColumn
}
