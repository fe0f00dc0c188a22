package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type Scraper struct {
	selectors *Selectors
}

func NewScraper(selectors *Selectors) *Scraper {
	return &Scraper{
		selectors: selectors,
	}
}

func (s *Scraper) Selectors() *Selectors {
	return s.selectors
}

// SummaryRows возвращает строки первых TablesLimit таблиц страницы котировки.
// Каждая строка: текстовые узлы <tr>, соединённые RowDelimiter.
func (s *Scraper) SummaryRows(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var rows []string
	doc.Find(s.selectors.Quote.Tables).Each(func(i int, table *goquery.Selection) {
		if i >= s.selectors.Quote.TablesLimit {
			return
		}
		rows = append(rows, tableRows(table)...)
	})
	return rows, nil
}

// StatisticsRows возвращает строки таблиц из блоков статистики с заданными заголовками.
// Блок: div ровно с двумя детьми, где первый ребёнок содержит заголовок, второй таблицу.
func (s *Scraper) StatisticsRows(page string, titles []string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	wanted := make(map[string]bool, len(titles))
	for _, t := range titles {
		wanted[t] = true
	}

	var rows []string
	doc.Find(s.selectors.Statistics.Section + " div").Each(func(_ int, div *goquery.Selection) {
		children := div.Children()
		if children.Length() != 2 {
			return
		}
		title := strings.TrimSpace(children.First().Text())
		if !wanted[title] {
			return
		}
		rows = append(rows, tableRows(children.Eq(1))...)
	})
	return rows, nil
}

// ParseCurrency разбирает подпись вида "Currency in EUR. All numbers in thousands".
// Без точки в тексте считается USD, при неожиданном формате возвращается "".
func ParseCurrency(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, ".") {
		return "USD"
	}
	sentence := strings.SplitN(text, ".", 2)[0]
	tokens := strings.Fields(sentence)
	if len(tokens) == 3 {
		return tokens[2]
	}
	return ""
}

func tableRows(sel *goquery.Selection) []string {
	var rows []string
	sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tokens := textNodes(tr)
		if len(tokens) == 0 {
			return
		}
		rows = append(rows, strings.Join(tokens, RowDelimiter))
	})
	return rows
}

// textNodes собирает непустые текстовые узлы в порядке документа
func textNodes(sel *goquery.Selection) []string {
	var tokens []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				tokens = append(tokens, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return tokens
}
