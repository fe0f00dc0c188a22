package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stock-crawler/internal/config"
	"stock-crawler/internal/table"
)

type Kind int

const (
	KindMissing Kind = iota
	KindNumber
	KindDate
	KindBool
	KindText
)

// Value: типизированное значение ячейки
type Value struct {
	Kind   Kind
	Number decimal.Decimal
	Date   time.Time
	Bool   bool
	Text   string
}

// String возвращает каноническое текстовое представление для CSV
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Number.String()
	case KindDate:
		return v.Date.Format(table.DateLayout)
	case KindBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case KindText:
		return v.Text
	}
	return ""
}

func (v Value) Float() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.Number.InexactFloat64(), true
}

// Суффиксы величин: сдвиг десятичной точки
var magnitudes = map[byte]int32{
	'k': 3,
	'K': 3,
	'M': 6,
	'B': 9,
	'T': 12,
}

var missingMarkers = map[string]bool{
	"":    true,
	"-":   true,
	"--":  true,
	"N/A": true,
	"NaN": true,
	"nan": true,
}

// ParseNumber разбирает число сайта: проценты, разделители тысяч, суффиксы k/M/B/T
func ParseNumber(text string) (decimal.Decimal, bool) {
	text = strings.TrimSpace(text)
	if missingMarkers[text] {
		return decimal.Zero, false
	}
	text = strings.ReplaceAll(text, ",", "")

	shift := int32(0)
	if strings.HasSuffix(text, "%") {
		text = strings.TrimSuffix(text, "%")
		shift = -2
	} else if n := len(text); n > 1 {
		if s, ok := magnitudes[text[n-1]]; ok {
			text = text[:n-1]
			shift = s
		}
	}

	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Shift(shift), true
}

func parseBool(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "false", "0", "no":
		return false
	}
	return true
}

// ConvertValue приводит текст к типу колонки; нераспознанное значение становится пропуском
func ConvertValue(text, dtype string, months []config.MonthDigit) Value {
	switch dtype {
	case config.DtypeDatetime:
		if d, ok := ParseDate(text, months); ok {
			return Value{Kind: KindDate, Date: d}
		}
		return Value{}
	case config.DtypeBool:
		return Value{Kind: KindBool, Bool: parseBool(text)}
	case config.DtypeString, config.DtypeNotYetImplemented:
		if text == "" {
			return Value{}
		}
		return Value{Kind: KindText, Text: text}
	}

	if d, ok := ParseNumber(text); ok {
		return Value{Kind: KindNumber, Number: d}
	}
	return Value{}
}

func (n *Normalizer) ConvertValue(text, column string) Value {
	dtype, _ := n.mapping.Dtype(column)
	return ConvertValue(text, dtype, n.mapping.Months())
}

// ConvertTypes приводит все колонки таблицы к типам из col2dtype на месте
func (n *Normalizer) ConvertTypes(t *table.Table) {
	months := n.mapping.Months()
	for j, col := range t.Columns {
		dtype, _ := n.mapping.Dtype(col)
		for i := range t.Rows {
			t.Rows[i][j] = ConvertValue(t.Rows[i][j], dtype, months).String()
		}
	}
}
