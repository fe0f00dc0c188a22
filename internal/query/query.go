package query

import (
	"fmt"
	"time"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/normalize"
	"stock-crawler/internal/table"
)

// Range: строки [Start, End) файла, 0 = самая свежая дата
type Range struct {
	Start int
	End   int
}

// At: одна строка i, то же что Range{i, i+1}
func At(i int) Range {
	return Range{Start: i, End: i + 1}
}

// Point: значение колонки на дату
type Point struct {
	Date  string
	Value normalize.Value
}

// Reader читает отдельные колонки сохранённых датасетов с типами из col2dtype
type Reader struct {
	store      *table.Store
	normalizer *normalize.Normalizer
}

func NewReader(store *table.Store, normalizer *normalize.Normalizer) *Reader {
	return &Reader{store: store, normalizer: normalizer}
}

// Get возвращает значения column символа в диапазоне r.
// Файл выбирается по col2filename колонки; отсутствующий файл даёт пустой результат.
func (q *Reader) Get(symbol, column string, yearly bool, r Range) ([]Point, error) {
	if r.Start < 0 || r.End < r.Start {
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("invalid range [%d, %d)", r.Start, r.End))
	}

	var (
		t   *table.Table
		err error
	)
	if yearly {
		t, err = q.store.LoadYearly(column, symbol, false)
	} else {
		t, err = q.store.Load(column, symbol, false)
	}
	if err != nil || t == nil {
		return nil, err
	}
	if t.ColumnIndex(column) < 0 {
		return nil, apperrors.NewInvalidArgumentError(fmt.Sprintf("column %q not found", column)).
			WithContext("symbol", symbol)
	}

	part := t.Slice(r.Start, r.End)
	values := part.Column(column)
	points := make([]Point, len(values))
	for i, v := range values {
		points[i] = Point{Date: part.Index[i], Value: q.normalizer.ConvertValue(v, column)}
	}
	return points, nil
}

// Value возвращает значение в строке i; false если строки нет
func (q *Reader) Value(symbol, column string, yearly bool, i int) (Point, bool, error) {
	points, err := q.Get(symbol, column, yearly, At(i))
	if err != nil || len(points) == 0 {
		return Point{}, false, err
	}
	return points[len(points)-1], true, nil
}

// Since возвращает значения не старше from (по убыванию дат)
func (q *Reader) Since(symbol, column string, yearly bool, from time.Time) ([]Point, error) {
	all, err := q.Get(symbol, column, yearly, Range{Start: 0, End: int(^uint(0) >> 1)})
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		d, ok := table.ParseIndexDate(p.Date)
		if ok && !d.Before(from) {
			out = append(out, p)
		}
	}
	return out, nil
}
