package paths

import (
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/config"
)

const cacheSize = 4096

// Файлы, у которых есть квартальный и годовой варианты
var periodFiles = map[string]bool{
	"income_statement": true,
	"balance_sheet":    true,
	"cash_flow":        true,
	"statistics":       true,
}

// Options выбирает вариант пути. Backup, Debug, Original взаимоисключающие,
// при нескольких флагах приоритет в этом порядке.
type Options struct {
	Yearly   bool
	Backup   bool
	Debug    bool
	Original bool
}

func (o Options) subpath() string {
	switch {
	case o.Backup:
		return "backup"
	case o.Debug:
		return "debug"
	case o.Original:
		return "original"
	}
	return ""
}

type cacheKey struct {
	dataset string
	symbol  string
	opts    Options
}

// Resolver детерминированно отображает (датасет, символ, опции) в путь файла.
// Файловую систему не трогает.
type Resolver struct {
	mapping     *config.Mapping
	companyDir  string
	profilePath string
	cache       *lru.Cache[cacheKey, string]
}

func NewResolver(mapping *config.Mapping, companyDir, profilePath string) (*Resolver, error) {
	cache, err := lru.New[cacheKey, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create path cache: %w", err)
	}
	return &Resolver{
		mapping:     mapping,
		companyDir:  companyDir,
		profilePath: profilePath,
		cache:       cache,
	}, nil
}

// Resolve возвращает путь CSV файла датасета
func (r *Resolver) Resolve(dataset, symbol string, opts Options) (string, error) {
	key := cacheKey{dataset: dataset, symbol: symbol, opts: opts}
	if p, ok := r.cache.Get(key); ok {
		return p, nil
	}

	file, ok := r.mapping.Filename(dataset)
	if !ok {
		return "", apperrors.NewConfigError(fmt.Sprintf("unknown dataset %q", dataset), nil)
	}

	if file == config.ProfileFile {
		r.cache.Add(key, r.profilePath)
		return r.profilePath, nil
	}

	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", apperrors.NewInvalidArgumentError(fmt.Sprintf("symbol is required for dataset %q", dataset))
	}

	name := symbol + "_" + file
	if periodFiles[file] {
		period := "quarterly"
		if opts.Yearly {
			period = "yearly"
		}
		name = symbol + "_" + period + "_" + file
	}

	var p string
	if sub := opts.subpath(); sub != "" {
		p = filepath.Join(r.companyDir, symbol, sub, name+"_"+sub+".csv")
	} else {
		p = filepath.Join(r.companyDir, symbol, name+".csv")
	}

	r.cache.Add(key, p)
	return p, nil
}

// SymbolDir возвращает каталог символа
func (r *Resolver) SymbolDir(symbol string) string {
	return filepath.Join(r.companyDir, symbol)
}

// OriginalFile: произвольный файл в original/ символа (например tmp_original.csv)
func (r *Resolver) OriginalFile(symbol, name string) string {
	return filepath.Join(r.companyDir, symbol, "original", name)
}

func (r *Resolver) ProfilePath() string {
	return r.profilePath
}
