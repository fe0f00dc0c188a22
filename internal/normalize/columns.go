package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

// CleanColumn убирает суффикс в скобках и одну завершающую цифру (сноску).
// Суффикс повтора .N из Disambiguate остаётся: повторная очистка ничего не меняет.
func CleanColumn(col string) string {
	if i := strings.Index(col, "("); i >= 0 {
		col = col[:i]
	}
	if r := []rune(col); len(r) > 0 && unicode.IsDigit(r[len(r)-1]) && !hasRepeatSuffix(col) {
		col = string(r[:len(r)-1])
	}
	if strings.Contains(col, earningsDate) {
		col = earningsDate
	}
	return strings.TrimSpace(col)
}

// hasRepeatSuffix: колонка вида "Beta.1"
func hasRepeatSuffix(col string) bool {
	i := strings.LastIndex(col, ".")
	if i <= 0 || i == len(col)-1 {
		return false
	}
	for _, r := range col[i+1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func RenameColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = CleanColumn(c)
	}
	return out
}

// Disambiguate добавляет .1, .2, ... к повторам, первое вхождение без изменений
func Disambiguate(columns []string) []string {
	out := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	counts := make(map[string]int, len(columns))
	for _, c := range columns {
		used[c] = true
	}

	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if !seen[c] {
			seen[c] = true
			out[i] = c
			continue
		}
		for {
			counts[c]++
			candidate := c + "." + strconv.Itoa(counts[c])
			if !used[candidate] {
				used[candidate] = true
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// NormalizeColumns = RenameColumns + Disambiguate
func NormalizeColumns(columns []string) []string {
	return Disambiguate(RenameColumns(columns))
}
