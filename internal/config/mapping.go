package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/antzucaro/matchr"

	"stock-crawler/internal/apperrors"
)

// Типы колонок в col2dtype
const (
	DtypeDatetime          = "datetime"
	DtypeFloat             = "float"
	DtypeBool              = "bool"
	DtypeString            = "str"
	DtypeNotYetImplemented = "NotYetImplemented"
)

// ProfileFile: имя файла, которое резолвится в глобальный профиль
const ProfileFile = "profile"

// Mapping: колонка/датасет -> файл, колонка -> тип, месяц -> цифра.
// Читается конкурентно воркерами, меняется только шагом UpdateColumns.
type Mapping struct {
	Col2Filename map[string]string `json:"col2filename"`
	Col2Dtype    map[string]string `json:"col2dtype"`
	Month2Digit  map[string]string `json:"month2digit"`

	mu sync.RWMutex
}

func LoadMapping(filePath string) (*Mapping, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to read mapping file", err).WithContext("path", filePath)
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.NewConfigError("failed to parse mapping file", err).WithContext("path", filePath)
	}
	if len(m.Col2Filename) == 0 {
		return nil, apperrors.NewConfigError("mapping has no col2filename entries", nil).WithContext("path", filePath)
	}
	if m.Col2Dtype == nil {
		m.Col2Dtype = map[string]string{}
	}
	if m.Month2Digit == nil {
		m.Month2Digit = map[string]string{}
	}
	return &m, nil
}

// Save пишет mapping обратно с отступом в 4 пробела
func (m *Mapping) Save(filePath string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "    ")
	m.mu.RUnlock()
	if err != nil {
		return apperrors.NewStorageError("failed to encode mapping", err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return apperrors.NewStorageError("failed to create mapping dir", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return apperrors.NewStorageError("failed to write mapping file", err).WithContext("path", filePath)
	}
	return nil
}

// Filename возвращает имя файла датасета
func (m *Mapping) Filename(dataset string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.Col2Filename[dataset]
	return f, ok
}

func (m *Mapping) Dtype(column string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.Col2Dtype[column]
	return d, ok
}

// Months возвращает копию month2digit в стабильном порядке ключей
func (m *Mapping) Months() []MonthDigit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MonthDigit, 0, len(m.Month2Digit))
	for name, digit := range m.Month2Digit {
		out = append(out, MonthDigit{Name: name, Digit: digit})
	}
	// длинные названия раньше: "June" должен сработать до "Jun"
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Name) != len(out[j].Name) {
			return len(out[i].Name) > len(out[j].Name)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type MonthDigit struct {
	Name  string
	Digit string
}

// Drift возвращает колонки, которых нет в col2filename
func (m *Mapping) Drift(columns []string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var unknown []string
	for _, col := range columns {
		if _, ok := m.Col2Filename[col]; !ok {
			unknown = append(unknown, col)
		}
	}
	return unknown
}

// Closest ищет наиболее похожую известную колонку (Jaro-Winkler)
func (m *Mapping) Closest(column string) (string, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	best, bestScore := "", 0.0
	for known := range m.Col2Filename {
		score := matchr.JaroWinkler(column, known, false)
		if score > bestScore || (score == bestScore && known < best) {
			best, bestScore = known, score
		}
	}
	return best, bestScore
}

// UpdateColumns добавляет неизвестные колонки с указанным файлом, возвращает добавленные
func (m *Mapping) UpdateColumns(filename string, columns []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var added []string
	for _, col := range columns {
		if col == "" {
			continue
		}
		if _, ok := m.Col2Filename[col]; ok {
			continue
		}
		m.Col2Filename[col] = filename
		added = append(added, col)
	}
	return added
}

// Reload перечитывает mapping с диска на месте
func (m *Mapping) Reload(filePath string) error {
	fresh, err := LoadMapping(filePath)
	if err != nil {
		return fmt.Errorf("reload mapping: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Col2Filename = fresh.Col2Filename
	m.Col2Dtype = fresh.Col2Dtype
	m.Month2Digit = fresh.Month2Digit
	return nil
}
