package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/scraper"
)

// LoadSelectors загружает селекторы из YAML файла поверх значений по умолчанию
func LoadSelectors(filePath string) (*scraper.Selectors, error) {
	if filePath == "" {
		return nil, apperrors.NewConfigError("selectors file path is empty", nil)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("selectors file not found: %s", filePath), err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close selectors file: %v\n", closeErr)
		}
	}()

	selectors := scraper.DefaultSelectors()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(selectors); err != nil {
		return nil, apperrors.NewConfigError("failed to parse selectors YAML", err)
	}

	if err := validateSelectors(selectors); err != nil {
		return nil, apperrors.NewConfigError("invalid selectors", err)
	}

	return selectors, nil
}

// LoadSelectorsOrDefault: файл из конфига, если задан, иначе встроенные селекторы
func (c *Config) LoadSelectorsOrDefault() (*scraper.Selectors, error) {
	if c.Paths.Selectors == "" {
		return scraper.DefaultSelectors(), nil
	}
	if _, err := os.Stat(c.Paths.Selectors); os.IsNotExist(err) {
		return scraper.DefaultSelectors(), nil
	}
	return LoadSelectors(c.Paths.Selectors)
}

// validateSelectors проверяет минимальный набор селекторов
func validateSelectors(s *scraper.Selectors) error {
	required := map[string]string{
		"quote.tables":         s.Quote.Tables,
		"quote.lookup_page":    s.Quote.LookupPage,
		"quote.nav_items":      s.Quote.NavItems,
		"statistics.main":      s.Statistics.Main,
		"statistics.section":   s.Statistics.Section,
		"statistics.download":  s.Statistics.Download,
		"history.download":     s.History.Download,
		"financials.quarterly": s.Financials.Quarterly,
		"financials.download":  s.Financials.Download,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	if s.Quote.TablesLimit <= 0 {
		return fmt.Errorf("quote.tables_limit must be > 0")
	}
	return nil
}
