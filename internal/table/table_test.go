package table

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-crawler/internal/apperrors"
)

func TestReadWriteRoundTrip(t *testing.T) {
	src := "Date,Open,Close\n2021-01-05,128.89,131.01\n2021-01-04,133.52,\n"

	tbl, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Date", tbl.IndexName)
	assert.Equal(t, []string{"Open", "Close"}, tbl.Columns)
	assert.Equal(t, 2, tbl.Len())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tbl))
	assert.Equal(t, src, buf.String())
}

func TestReadPadsShortRows(t *testing.T) {
	tbl, err := Read(strings.NewReader("Date,A,B\n2021-01-04,1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", ""}, tbl.Rows[0])
}

func TestReadRejectsLongRows(t *testing.T) {
	_, err := Read(strings.NewReader("Date,A,B\n2021-01-04,1,2\n2021-01-05,1,2,3\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsParse(err))

	// пустой хвост (лишняя запятая) допустим
	tbl, err := Read(strings.NewReader("Date,A,B\n2021-01-04,1,2,\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tbl.Rows[0])
}

func TestNormalizeSortDedupe(t *testing.T) {
	tbl := New("name", []string{"V"})
	tbl.AddRow("ttm", []string{"0"})
	tbl.AddRow("3/31/2020", []string{"1"})
	tbl.AddRow("12/31/2020", []string{"2"})
	tbl.AddRow("2020-12-31", []string{"3"})
	tbl.AddRow("9/30/2020", []string{"4"})

	tbl.NormalizeDateIndex()
	tbl.DedupeIndex()
	tbl.SortByDateDesc()

	assert.Equal(t, "Date", tbl.IndexName)
	if diff := cmp.Diff([]string{"2020-12-31", "2020-09-30", "2020-03-31"}, tbl.Index); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"2"}, tbl.Rows[0])
}

func TestConcatUnionsColumns(t *testing.T) {
	a := New("Date", []string{"A", "B"})
	a.AddRow("2021-01-05", []string{"1", "2"})
	b := New("Date", []string{"B", "C"})
	b.AddRow("2021-01-04", []string{"3", "4"})

	out := Concat(a, b)
	assert.Equal(t, []string{"A", "B", "C"}, out.Columns)
	assert.Equal(t, [][]string{{"1", "2", ""}, {"", "3", "4"}}, out.Rows)
}

func TestRecordOverwritesRepeatedColumn(t *testing.T) {
	rec := NewRecord("summary", MarketDay(mustDate(t, "2021-01-05")))
	rec.Set("Open", "1")
	rec.Set("Beta", "1.2")
	rec.Set("Open", "2")

	assert.Equal(t, []string{"Open", "Beta"}, rec.Columns())
	tbl := RecordsToTable(rec)
	assert.Equal(t, [][]string{{"2", "1.2"}}, tbl.Rows)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	v, ok := ParseIndexDate(s)
	require.True(t, ok)
	return v.Add(12 * time.Hour)
}

func TestRecordRenameColumnsKeepsValues(t *testing.T) {
	rec := NewRecord("summary", MarketDay(mustDate(t, "2021-01-05")))
	rec.Set("Symbol", "AAPL")
	rec.Set("Beta (5Y Monthly)", "1.27")

	rec.RenameColumns(func(cols []string) []string {
		return []string{cols[0], "Beta"}
	})

	assert.Equal(t, []string{"Symbol", "Beta"}, rec.Columns())
	v, ok := rec.Get("Beta")
	assert.True(t, ok)
	assert.Equal(t, "1.27", v)
	_, ok = rec.Get("Beta (5Y Monthly)")
	assert.False(t, ok)
}

func TestSliceHalfOpen(t *testing.T) {
	tbl := New(DateColumn, []string{"Close"})
	tbl.AddRow("2021-01-07", []string{"3"})
	tbl.AddRow("2021-01-06", []string{"2"})
	tbl.AddRow("2021-01-05", []string{"1"})

	assert.Equal(t, []string{"2021-01-07", "2021-01-06"}, tbl.Slice(0, 2).Index)
	assert.Equal(t, []string{"2021-01-06"}, tbl.Slice(1, 2).Index)
	assert.Equal(t, []string{"2021-01-05"}, tbl.Slice(2, 10).Index)
	assert.Equal(t, 0, tbl.Slice(3, 5).Len())
	assert.Equal(t, 0, tbl.Slice(2, 1).Len())
	assert.Equal(t, 3, tbl.Len(), "source is untouched")
}
