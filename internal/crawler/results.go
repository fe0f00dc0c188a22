package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Секции краулинга
const (
	SectionSummary    = "summary"
	SectionHistory    = "history"
	SectionFinancials = "financials"
	SectionStatistics = "statistics"
	// проверка страницы символа в init/debug
	SectionExists = "exists"
)

// Results: symbol -> section -> вектор успехов шагов.
// Хранятся только секции, которые не выполнились полностью.
type Results map[string]map[string][]bool

// Record запоминает результат секции, если хотя бы один шаг не выполнен
func (r Results) Record(symbol, section string, done []bool) bool {
	if allDone(done) {
		return false
	}
	if r[symbol] == nil {
		r[symbol] = make(map[string][]bool)
	}
	r[symbol][section] = append([]bool(nil), done...)
	return true
}

// Merge переносит результаты другого воркера (шарды не пересекаются)
func (r Results) Merge(other Results) {
	for symbol, sections := range other {
		for section, done := range sections {
			r.Record(symbol, section, done)
		}
	}
}

// Symbols возвращает отсортированный список символов с ошибками
func (r Results) Symbols() []string {
	out := make([]string, 0, len(r))
	for s := range r {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r Results) Sections() int {
	n := 0
	for _, sections := range r {
		n += len(sections)
	}
	return n
}

// WriteJSON перезаписывает файл результатов
func (r Results) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func allDone(done []bool) bool {
	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}
