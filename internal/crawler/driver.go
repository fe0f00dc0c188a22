package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"stock-crawler/internal/apperrors"
	"stock-crawler/internal/browser"
	"stock-crawler/internal/config"
	"stock-crawler/internal/normalize"
	"stock-crawler/internal/observability"
	"stock-crawler/internal/profile"
	"stock-crawler/internal/retry"
	"stock-crawler/internal/scraper"
	"stock-crawler/internal/table"
)

// Options режима запуска
type Options struct {
	Init  bool
	Debug bool
}

// Deps: зависимости драйвера, общие для всех воркеров
type Deps struct {
	Config   *config.Config
	Launcher browser.Launcher
	Scraper  *scraper.Scraper
	Store    *table.Store
	Mapping  *config.Mapping
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Driver владеет одной браузерной сессией и обходит секции символов по очереди.
// Не потокобезопасен: на каждого воркера свой Driver.
type Driver struct {
	cfg      *config.Config
	launcher browser.Launcher
	session  browser.Session
	scraper  *scraper.Scraper
	store    *table.Store
	mapping  *config.Mapping
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
	policy   retry.Policy

	// номер сессии браузера, растёт при каждом Reboot
	generation int

	results Results
	infos   map[string]profile.Info

	// сведения о текущем символе (init/debug)
	stock    *bool
	currency string

	pause func(ctx context.Context, d time.Duration) error
}

// NewDriver запускает браузер и, если нужно, входит на сайт
func NewDriver(ctx context.Context, deps Deps, opts Options) (*Driver, error) {
	d := &Driver{
		cfg:      deps.Config,
		launcher: deps.Launcher,
		scraper:  deps.Scraper,
		store:    deps.Store,
		mapping:  deps.Mapping,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		opts:     opts,
		results:  make(Results),
		infos:    make(map[string]profile.Info),
		pause:    sleep,
	}
	d.policy = retry.Policy{
		MaxAttempts: d.cfg.Retry.MaxAttempts,
		Backoff: retry.Backoff{
			Min:       d.cfg.GetBackoffMin(),
			Max:       d.cfg.GetBackoffMax(),
			JitterPct: d.cfg.Backoff.JitterPct,
		},
		Recover: d.Reboot,
	}

	session, err := d.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	d.session = session

	if d.requireSignIn() {
		if err := d.SignIn(ctx); err != nil {
			_ = d.session.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Driver) requireSignIn() bool {
	return d.opts.Init || d.cfg.Rod.RequireSignIn
}

// SignIn: логин, далее, пауза, пароль, отправка
func (d *Driver) SignIn(ctx context.Context) error {
	creds := d.cfg.Credentials
	if creds.Username == "" || creds.Password == "" {
		return apperrors.NewConfigError("sign-in credentials are not set", nil)
	}

	sel := d.scraper.Selectors().SignIn
	steps := []retry.Step{
		func(ctx context.Context) error { return d.session.Navigate(ctx, d.cfg.Site.SignInURL) },
		func(ctx context.Context) error { return d.session.Input(ctx, sel.Username, creds.Username) },
		func(ctx context.Context) error { return d.session.Click(ctx, sel.Next) },
		func(ctx context.Context) error { return d.pause(ctx, d.cfg.GetRodStepPause()) },
		func(ctx context.Context) error { return d.session.Input(ctx, sel.Password, creds.Password) },
		func(ctx context.Context) error { return d.session.Click(ctx, sel.Submit) },
		func(ctx context.Context) error { return d.pause(ctx, d.cfg.GetRodStepPause()) },
	}
	for i, step := range steps {
		if err := step(ctx); err != nil {
			return fmt.Errorf("sign in step %d: %w", i+1, err)
		}
	}

	d.logger.Info("Signed in", "url", d.cfg.Site.SignInURL)
	return nil
}

// Reboot закрывает сессию, выжидает паузу и поднимает новую
func (d *Driver) Reboot(ctx context.Context) error {
	d.logger.Warn("Rebooting browser session",
		"pause", d.cfg.GetRodRebootPause(),
	)
	if d.metrics != nil {
		d.metrics.Reboots.Inc()
	}

	if d.session != nil {
		if err := d.session.Close(); err != nil {
			d.logger.Debug("Close stale session", "error", err.Error())
		}
		d.session = nil
	}
	if err := d.pause(ctx, d.cfg.GetRodRebootPause()); err != nil {
		return err
	}

	session, err := d.launcher.Launch(ctx)
	if err != nil {
		return fmt.Errorf("relaunch browser: %w", err)
	}
	d.session = session
	d.generation++

	if d.requireSignIn() {
		return d.SignIn(ctx)
	}
	return nil
}

// sectionPage держит сессию на странице секции: переход выполняется при первом
// обращении и заново в каждой новой сессии браузера
type sectionPage struct {
	d   *Driver
	url string
	// сессия, в которой страница открыта; -1 = не открыта
	gen int
}

func (d *Driver) newSectionPage(symbol, page string) *sectionPage {
	return &sectionPage{d: d, url: d.quoteURL(symbol, page), gen: -1}
}

// open переходит на страницу, если она не открыта в текущей сессии.
// true означает новый переход: состояние страницы сброшено.
func (p *sectionPage) open(ctx context.Context) (bool, error) {
	if p.opened() {
		return false, nil
	}
	if err := p.d.session.Navigate(ctx, p.url); err != nil {
		return false, err
	}
	p.gen = p.d.generation
	return true, nil
}

func (p *sectionPage) opened() bool {
	return p.gen == p.d.generation
}

// reset: следующий open снова перейдёт на страницу
func (p *sectionPage) reset() {
	p.gen = -1
}

func (d *Driver) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}

// Results возвращает незавершённые секции этого драйвера
func (d *Driver) Results() Results {
	return d.results
}

// Infos: Stock/Currency по символам, собранные в init/debug
func (d *Driver) Infos() map[string]profile.Info {
	return d.infos
}

// Exists проверяет, что у символа есть страница котировки.
// Страница поиска (lookup) означает, что символа нет. Для существующего символа
// запоминается, является ли он акцией.
func (d *Driver) Exists(ctx context.Context, symbol string) (bool, error) {
	d.stock, d.currency = nil, ""

	err := d.policy.Run(ctx, func(ctx context.Context) error {
		return d.session.Navigate(ctx, d.quoteURL(symbol, ""))
	})
	if err != nil {
		return false, err
	}

	err = d.session.WaitVisible(ctx, d.scraper.Selectors().Quote.LookupPage)
	switch {
	case err == nil:
		d.logger.Info("Symbol not found", "symbol", symbol)
		return false, d.pause(ctx, d.cfg.GetRodStepPause())
	case apperrors.IsTransientPage(err):
		d.stock = d.isStock(ctx)
		return true, nil
	}
	return false, err
}

// IsStock: результат проверки последнего Exists; nil если не удалось определить
func (d *Driver) IsStock() *bool {
	return d.stock
}

// TakeInfo сохраняет сведения о символе и сбрасывает их для следующего
func (d *Driver) TakeInfo(symbol string) profile.Info {
	info := profile.Info{Stock: d.stock, Currency: d.currency}
	d.infos[symbol] = info
	d.stock, d.currency = nil, ""
	return info
}

// isStock: в навигации котировки есть вкладка Financials
func (d *Driver) isStock(ctx context.Context) *bool {
	items, err := d.session.Texts(ctx, d.scraper.Selectors().Quote.NavItems)
	if err != nil {
		return nil
	}
	stock := false
	for _, item := range items {
		if strings.Contains(item, "Financials") {
			stock = true
			break
		}
	}
	return &stock
}

// run выполняет шаги секции с ретраями и записывает результат
func (d *Driver) run(ctx context.Context, symbol, section string, steps []retry.Step, beforeRetry func(ctx context.Context, attempt int) error) ([]bool, error) {
	p := d.policy
	p.BeforeRetry = beforeRetry
	p.OnError = func(step, attempt int, class retry.Class, err error) {
		d.logger.Warn("Section attempt failed",
			"symbol", symbol,
			"section", section,
			"step", step,
			"attempt", attempt,
			"action", class.String(),
			"error", err.Error(),
		)
	}

	done, err := p.RunSteps(ctx, steps)
	ok := err == nil && allDone(done)
	if d.metrics != nil {
		d.metrics.ObserveSection(section, ok)
	}
	if d.results.Record(symbol, section, done) && err == nil {
		d.logger.Warn("Section incomplete",
			"symbol", symbol,
			"section", section,
			"result", done,
		)
	}
	return done, err
}

// download нажимает кнопку скачивания и переносит файл в датасет
func (d *Driver) download(ctx context.Context, dataset, symbol, button string) error {
	file, err := d.session.Download(ctx, func(ctx context.Context) error {
		return d.session.Click(ctx, button)
	})
	if err != nil {
		return err
	}
	dst, err := d.store.MoveIn(file, dataset, symbol, d.opts.Debug)
	if err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.Downloads.Inc()
	}
	d.logger.Debug("Downloaded",
		"symbol", symbol,
		"dataset", dataset,
		"path", dst,
	)
	return nil
}

// skip: файл уже скачан ранее (в debug всегда качаем заново)
func (d *Driver) skip(dataset, symbol string) bool {
	return !d.opts.Debug && d.store.Exists(dataset, symbol, false)
}

// save приводит имена колонок записи к именам в файлах и вливает её в датасет
func (d *Driver) save(symbol string, rec *table.Record) error {
	rec.RenameColumns(normalize.NormalizeColumns)
	d.checkDrift(symbol, rec)
	return d.store.MergeAndSave(rec.Dataset, symbol, table.RecordsToTable(rec), d.saveOptions())
}

// checkDrift логирует колонки, которых нет в mapping
func (d *Driver) checkDrift(symbol string, rec *table.Record) {
	for _, col := range d.mapping.Drift(rec.Columns()) {
		closest, score := d.mapping.Closest(col)
		d.logger.Warn("Unmapped column",
			"symbol", symbol,
			"dataset", rec.Dataset,
			"column", col,
			"closest", closest,
			"score", fmt.Sprintf("%.2f", score),
		)
	}
}

func (d *Driver) saveOptions() table.SaveOptions {
	return table.SaveOptions{Init: d.opts.Init, Debug: d.opts.Debug}
}

// quoteURL: base/quote/SYM или base/quote/SYM/page?p=SYM
func (d *Driver) quoteURL(symbol, page string) string {
	base := strings.TrimRight(d.cfg.Site.BaseURL, "/") + "/quote/" + url.PathEscape(symbol)
	if page == "" {
		return base
	}
	return base + "/" + page + "?p=" + url.QueryEscape(symbol)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
