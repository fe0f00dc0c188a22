package app

import (
	"io"
	"sort"

	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"stock-crawler/internal/crawler"
	"stock-crawler/internal/storage"
)

// RenderResults печатает незавершённые секции таблицей
func RenderResults(w io.Writer, results crawler.Results) {
	if len(results) == 0 {
		return
	}

	tw := prettytable.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(prettytable.StyleLight)
	tw.AppendHeader(prettytable.Row{"Symbol", "Section", "Steps"})

	for _, symbol := range results.Symbols() {
		sections := make([]string, 0, len(results[symbol]))
		for section := range results[symbol] {
			sections = append(sections, section)
		}
		sort.Strings(sections)
		for _, section := range sections {
			tw.AppendRow(prettytable.Row{symbol, section, storage.EncodeResult(results[symbol][section])})
		}
	}
	tw.AppendFooter(prettytable.Row{len(results), results.Sections(), ""})
	tw.Render()
}
