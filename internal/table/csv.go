package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stock-crawler/internal/apperrors"
)

// Read читает CSV: первая строка заголовок, первая колонка индекс.
// Короткие строки дополняются пустыми ячейками. Строка с непустыми
// значениями за пределами заголовка даёт ошибку разбора.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return New("", nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) == 0 {
		return New("", nil), nil
	}

	t := New(header[0], header[1:])
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", t.Len()+1, err)
		}
		if len(record) == 0 {
			continue
		}
		values := record[1:]
		if extra := overflow(values, len(t.Columns)); extra > 0 {
			line, _ := reader.FieldPos(0)
			return nil, apperrors.NewParseError("row has more values than header", nil).
				WithContext("line", line).
				WithContext("columns", len(t.Columns)).
				WithContext("extra", extra)
		}
		t.AddRow(record[0], values)
	}
	return t, nil
}

// overflow: число непустых значений за пределами n колонок
func overflow(values []string, n int) int {
	extra := 0
	for i := n; i < len(values); i++ {
		if values[i] != "" {
			extra++
		}
	}
	return extra
}

func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func Write(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	header := append([]string{t.IndexName}, t.Columns...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, t.Index[i])
		record = append(record, row...)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFile пишет таблицу через временный файл и rename
func WriteFile(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := Write(tmp, t); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
