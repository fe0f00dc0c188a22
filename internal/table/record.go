package table

import "time"

// Record: одна датированная строка, собранная со страниц сайта.
// Повторная колонка перезаписывает значение, порядок колонок сохраняется.
type Record struct {
	Dataset string
	Date    time.Time

	columns []string
	values  map[string]string
}

func NewRecord(dataset string, date time.Time) *Record {
	return &Record{
		Dataset: dataset,
		Date:    date,
		values:  make(map[string]string),
	}
}

func (r *Record) Set(column, value string) {
	if column == "" {
		return
	}
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

func (r *Record) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

func (r *Record) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Record) Len() int {
	return len(r.columns)
}

// RenameColumns переименовывает колонки, значения и порядок сохраняются.
// rename возвращает столько же уникальных имён.
func (r *Record) RenameColumns(rename func([]string) []string) {
	renamed := rename(r.Columns())
	values := make(map[string]string, len(renamed))
	for i, c := range r.columns {
		values[renamed[i]] = r.values[c]
	}
	r.columns = renamed
	r.values = values
}

// RecordsToTable строит таблицу с индексом Date из записей
func RecordsToTable(records ...*Record) *Table {
	t := New(DateColumn, nil)
	for _, rec := range records {
		for _, c := range rec.columns {
			if t.ColumnIndex(c) < 0 {
				t.Columns = append(t.Columns, c)
			}
		}
	}
	for _, rec := range records {
		values := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = rec.values[c]
		}
		t.AddRow(rec.Date.Format(DateLayout), values)
	}
	return t
}
