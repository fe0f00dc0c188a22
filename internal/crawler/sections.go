package crawler

import (
	"context"

	"stock-crawler/internal/normalize"
	"stock-crawler/internal/retry"
	"stock-crawler/internal/scraper"
	"stock-crawler/internal/table"
)

// Датасеты, которые скачиваются со страницы истории (имена пунктов фильтра)
const (
	historyPrices = "history"
	historyDivs   = "Dividends Only"
	historySplits = "Stock Splits"
)

// Summary снимает таблицы котировки и блоки статистики в одну строку summary за сегодня.
// Строка сохраняется только если оба шага выполнены.
func (d *Driver) Summary(ctx context.Context, symbol string) error {
	rec := table.NewRecord(SectionSummary, d.store.Today())
	rec.Set("Symbol", symbol)
	sel := d.scraper.Selectors()

	steps := []retry.Step{
		// таблицы страницы котировки
		func(ctx context.Context) error {
			if err := d.session.Navigate(ctx, d.quoteURL(symbol, "")); err != nil {
				return err
			}
			if err := d.session.WaitVisible(ctx, sel.Quote.Tables); err != nil {
				return err
			}
			page, err := d.session.HTML(ctx)
			if err != nil {
				return err
			}
			rows, err := d.scraper.SummaryRows(page)
			if err != nil {
				return err
			}
			normalize.ParseRows(rec, rows)
			return d.pause(ctx, d.cfg.GetRodStepPause())
		},
		// Stock Price History и Share Statistics со страницы статистики
		func(ctx context.Context) error {
			if err := d.session.Navigate(ctx, d.quoteURL(symbol, "key-statistics")); err != nil {
				return err
			}
			if err := d.session.WaitVisible(ctx, sel.Statistics.Main); err != nil {
				return err
			}
			page, err := d.session.HTML(ctx)
			if err != nil {
				return err
			}
			rows, err := d.scraper.StatisticsRows(page, scraper.SummaryStatisticsTitles)
			if err != nil {
				return err
			}
			normalize.ParseRows(rec, rows)
			return d.pause(ctx, d.cfg.GetRodStepPause())
		},
	}

	done, err := d.run(ctx, symbol, SectionSummary, steps, nil)
	if err != nil || !allDone(done) {
		return err
	}

	return d.save(symbol, rec)
}

// History скачивает цены, дивиденды и сплиты за весь период (MAX).
// Уже скачанные файлы пропускаются, между попытками страница перезагружается.
// После перезапуска браузера шаг заново открывает страницу истории.
func (d *Driver) History(ctx context.Context, symbol string) error {
	sel := d.scraper.Selectors().History
	page := d.newSectionPage(symbol, "history")

	isMax := false
	switchMax := func(ctx context.Context) error {
		if isMax {
			return nil
		}
		if err := d.session.Click(ctx, sel.Dropdown); err != nil {
			return err
		}
		if err := d.session.Click(ctx, sel.MaxButton); err != nil {
			return err
		}
		if err := d.pause(ctx, d.cfg.GetRodStepPause()); err != nil {
			return err
		}
		isMax = true
		return nil
	}
	switchFilter := func(ctx context.Context, item string) error {
		if err := d.session.Click(ctx, sel.FilterOpen); err != nil {
			return err
		}
		if err := d.session.ClickText(ctx, sel.FilterItem, item); err != nil {
			return err
		}
		if err := d.session.Click(ctx, sel.Apply); err != nil {
			return err
		}
		// после фильтра диапазон выбирается заново
		isMax = false
		return d.pause(ctx, d.cfg.GetRodStepPause())
	}

	step := func(dataset string) retry.Step {
		return func(ctx context.Context) error {
			if d.skip(dataset, symbol) {
				return nil
			}
			fresh, err := page.open(ctx)
			if err != nil {
				return err
			}
			if fresh {
				isMax = false
			}
			if dataset != historyPrices {
				if err := switchFilter(ctx, dataset); err != nil {
					return err
				}
			}
			if err := switchMax(ctx); err != nil {
				return err
			}
			return d.download(ctx, dataset, symbol, sel.Download)
		}
	}

	reload := func(ctx context.Context, _ int) error {
		isMax = false
		if !page.opened() {
			return nil
		}
		return d.session.Reload(ctx)
	}

	_, err := d.run(ctx, symbol, SectionHistory,
		[]retry.Step{step(historyPrices), step(historyDivs), step(historySplits)}, reload)
	if err != nil {
		return err
	}
	return d.pause(ctx, d.cfg.GetRodStepPause())
}

// Financials скачивает квартальные отчёты. На странице income statement
// в init/debug дополнительно читается валюта отчётности.
func (d *Driver) Financials(ctx context.Context, symbol string) error {
	sel := d.scraper.Selectors().Financials

	quarterly := func(ctx context.Context, dataset string) error {
		if err := d.session.Click(ctx, sel.Quarterly); err != nil {
			return err
		}
		if err := d.pause(ctx, d.cfg.GetRodStepPause()); err != nil {
			return err
		}
		return d.download(ctx, dataset, symbol, sel.Download)
	}

	statement := func(dataset, page string, readCurrency bool) retry.Step {
		return func(ctx context.Context) error {
			needCurrency := readCurrency && (d.opts.Init || d.opts.Debug)
			if !needCurrency && d.skip(dataset, symbol) {
				return nil
			}
			if err := d.session.Navigate(ctx, d.quoteURL(symbol, page)); err != nil {
				return err
			}
			if needCurrency {
				text, err := d.session.Text(ctx, sel.Currency)
				if err != nil {
					return err
				}
				d.currency = scraper.ParseCurrency(text)
			}
			if d.skip(dataset, symbol) {
				return nil
			}
			return quarterly(ctx, dataset)
		}
	}

	_, err := d.run(ctx, symbol, SectionFinancials, []retry.Step{
		statement("income_statement", "financials", true),
		statement("balance_sheet", "balance-sheet", false),
		statement("cash_flow", "cash-flow", false),
	}, nil)
	if err != nil {
		return err
	}
	return d.pause(ctx, d.cfg.GetRodStepPause())
}

// Statistics снимает блоки статистики в tmp и скачивает квартальные valuation measures.
// Каждая попытка открывает страницу статистики заново.
func (d *Driver) Statistics(ctx context.Context, symbol string) error {
	sel := d.scraper.Selectors().Statistics
	page := d.newSectionPage(symbol, "key-statistics")

	steps := []retry.Step{
		func(ctx context.Context) error {
			if d.skip("tmp", symbol) {
				return nil
			}
			if _, err := page.open(ctx); err != nil {
				return err
			}
			if err := d.session.WaitVisible(ctx, sel.Main); err != nil {
				return err
			}
			html, err := d.session.HTML(ctx)
			if err != nil {
				return err
			}
			rows, err := d.scraper.StatisticsRows(html, scraper.TmpStatisticsTitles)
			if err != nil {
				return err
			}
			rec := table.NewRecord("tmp", d.store.Today())
			normalize.ParseRows(rec, rows)
			return d.save(symbol, rec)
		},
		func(ctx context.Context) error {
			if d.skip(SectionStatistics, symbol) {
				return nil
			}
			if _, err := page.open(ctx); err != nil {
				return err
			}
			return d.download(ctx, SectionStatistics, symbol, sel.Download)
		},
	}

	renavigate := func(context.Context, int) error {
		page.reset()
		return nil
	}

	_, err := d.run(ctx, symbol, SectionStatistics, steps, renavigate)
	if err != nil {
		return err
	}
	return d.pause(ctx, d.cfg.GetRodStepPause())
}
