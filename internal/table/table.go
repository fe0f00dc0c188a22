package table

import (
	"sort"
	"strings"
	"time"
)

const (
	DateColumn = "Date"
	DateLayout = "2006-01-02"
)

// Форматы индекса, которые пишут сам краулер и сайт в выгрузках
var indexLayouts = []string{
	DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
}

// Table: первая колонка CSV это индекс (обычно Date), остальные ячейки текстом.
// Пустая строка означает отсутствующее значение.
type Table struct {
	IndexName string
	Columns   []string
	Index     []string
	Rows      [][]string
}

func New(indexName string, columns []string) *Table {
	return &Table{
		IndexName: indexName,
		Columns:   append([]string(nil), columns...),
	}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Index)
}

// AddRow добавляет строку, выравнивая её по числу колонок
func (t *Table) AddRow(index string, values []string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Index = append(t.Index, index)
	t.Rows = append(t.Rows, row)
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell возвращает значение ячейки; false если колонки нет
func (t *Table) Cell(row int, column string) (string, bool) {
	j := t.ColumnIndex(column)
	if j < 0 || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	return t.Rows[row][j], true
}

func (t *Table) Column(name string) []string {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// SetColumn заменяет или добавляет колонку
func (t *Table) SetColumn(name string, values []string) {
	j := t.ColumnIndex(name)
	if j < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
		j = len(t.Columns) - 1
	}
	for i := range t.Rows {
		if i < len(values) {
			t.Rows[i][j] = values[i]
		}
	}
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	c := &Table{
		IndexName: t.IndexName,
		Columns:   append([]string(nil), t.Columns...),
		Index:     append([]string(nil), t.Index...),
		Rows:      make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

// Head возвращает первые n строк
func (t *Table) Head(n int) *Table {
	c := t.Clone()
	if n < c.Len() {
		c.Index = c.Index[:n]
		c.Rows = c.Rows[:n]
	}
	return c
}

// Slice возвращает строки [start, end); границы обрезаются по длине таблицы
func (t *Table) Slice(start, end int) *Table {
	c := t.Clone()
	n := c.Len()
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	c.Index = c.Index[start:end]
	c.Rows = c.Rows[start:end]
	return c
}

// Filter оставляет строки, для которых keep вернул true
func (t *Table) Filter(keep func(i int) bool) {
	index := t.Index[:0:0]
	rows := t.Rows[:0:0]
	for i := range t.Index {
		if keep(i) {
			index = append(index, t.Index[i])
			rows = append(rows, t.Rows[i])
		}
	}
	t.Index = index
	t.Rows = rows
}

// ParseIndexDate разбирает значение индекса в дату (без времени)
func ParseIndexDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range indexLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			y, m, day := d.Date()
			return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// NormalizeDateIndex приводит индекс к DateLayout и удаляет строки без даты
func (t *Table) NormalizeDateIndex() {
	for i, idx := range t.Index {
		if d, ok := ParseIndexDate(idx); ok {
			t.Index[i] = d.Format(DateLayout)
		} else {
			t.Index[i] = ""
		}
	}
	t.Filter(func(i int) bool { return t.Index[i] != "" })
	t.IndexName = DateColumn
}

// SortByDateDesc сортирует строки по дате индекса по убыванию (стабильно)
func (t *Table) SortByDateDesc() {
	order := make([]int, len(t.Index))
	dates := make([]time.Time, len(t.Index))
	for i := range order {
		order[i] = i
		dates[i], _ = ParseIndexDate(t.Index[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dates[order[a]].After(dates[order[b]])
	})

	index := make([]string, len(order))
	rows := make([][]string, len(order))
	for i, j := range order {
		index[i] = t.Index[j]
		rows[i] = t.Rows[j]
	}
	t.Index = index
	t.Rows = rows
}

// DedupeIndex оставляет первое вхождение каждого значения индекса
func (t *Table) DedupeIndex() {
	seen := make(map[string]bool, len(t.Index))
	t.Filter(func(i int) bool {
		if seen[t.Index[i]] {
			return false
		}
		seen[t.Index[i]] = true
		return true
	})
}

// Concat склеивает таблицы: строки a, затем строки b.
// Колонки: порядок a, затем новые колонки b.
func Concat(a, b *Table) *Table {
	if a == nil {
		return b.Clone()
	}
	if b == nil {
		return a.Clone()
	}

	out := New(a.IndexName, a.Columns)
	for _, c := range b.Columns {
		if out.ColumnIndex(c) < 0 {
			out.Columns = append(out.Columns, c)
		}
	}

	for i, row := range a.Rows {
		out.AddRow(a.Index[i], row)
	}

	pos := make([]int, len(b.Columns))
	for j, c := range b.Columns {
		pos[j] = out.ColumnIndex(c)
	}
	for i, row := range b.Rows {
		values := make([]string, len(out.Columns))
		for j, v := range row {
			values[pos[j]] = v
		}
		out.AddRow(b.Index[i], values)
	}
	return out
}
