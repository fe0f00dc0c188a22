package normalize

import (
	"time"

	"github.com/shopspring/decimal"

	"stock-crawler/internal/table"
)

const quartersPerYear = 4

// QuarterlyToYearly сворачивает квартальную таблицу (по убыванию дат) в годовую:
// скользящая сумма четырёх кварталов, затем каждая четвёртая строка, начиная с первой
// строки месяца окончания финансового года (или с нулевой, если месяц неизвестен).
// Для таблиц меньше чем с двумя колонками возвращает nil.
func QuarterlyToYearly(t *table.Table, fiscalYearEnd time.Month) *table.Table {
	if t == nil || len(t.Columns) < 2 {
		return nil
	}

	offset := 0
	if fiscalYearEnd != 0 {
		for i, idx := range t.Index {
			if d, ok := table.ParseIndexDate(idx); ok && d.Month() == fiscalYearEnd {
				offset = i
				break
			}
		}
	}

	out := table.New(table.DateColumn, t.Columns)
	for i := offset; i+quartersPerYear <= t.Len(); i += quartersPerYear {
		values := make([]string, len(t.Columns))
		for j := range t.Columns {
			values[j] = windowSum(t, i, j)
		}
		out.AddRow(t.Index[i], values)
	}
	return out
}

// windowSum складывает строки [start, start+4) колонки j; пропуск в окне даёт пропуск
func windowSum(t *table.Table, start, j int) string {
	sum := decimal.Zero
	for i := start; i < start+quartersPerYear; i++ {
		d, ok := ParseNumber(t.Rows[i][j])
		if !ok {
			return ""
		}
		sum = sum.Add(d)
	}
	return sum.String()
}
