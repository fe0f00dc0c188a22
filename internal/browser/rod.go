package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"

	"stock-crawler/internal/apperrors"
)

const minSlowTimeout = 30 * time.Second

type RodOptions struct {
	Bin         string
	Headless    bool
	UserAgent   string
	DownloadDir string
	Timeout     time.Duration
	RPM         int
}

type RodLauncher struct {
	opts   RodOptions
	logger *slog.Logger
}

func NewRodLauncher(opts RodOptions, logger *slog.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, logger: logger}
}

// Launch поднимает новый процесс браузера с отдельной вкладкой
func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	downloadDir, err := filepath.Abs(l.opts.DownloadDir)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid download dir", err)
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create download dir", err)
	}

	lc := launcher.New().
		Context(ctx).
		Headless(l.opts.Headless).
		Set("incognito").
		Set("disable-notifications")
	if l.opts.Bin != "" {
		lc = lc.Bin(l.opts.Bin)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, apperrors.NewSessionStaleError("failed to launch browser", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		lc.Kill()
		return nil, apperrors.NewSessionStaleError("failed to connect to browser", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		lc.Kill()
		return nil, apperrors.NewSessionStaleError("failed to open page", err)
	}
	if l.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: l.opts.UserAgent}); err != nil {
			_ = b.Close()
			lc.Kill()
			return nil, apperrors.NewSessionStaleError("failed to set user agent", err)
		}
	}

	rpm := l.opts.RPM
	if rpm <= 0 {
		rpm = 60
	}

	slow := l.opts.Timeout * 6
	if slow < minSlowTimeout {
		slow = minSlowTimeout
	}

	l.logger.Debug("Browser launched", "control_url", controlURL, "headless", l.opts.Headless)

	return &rodSession{
		launcher:    lc,
		browser:     b,
		page:        page,
		timeout:     l.opts.Timeout,
		slowTimeout: slow,
		downloadDir: downloadDir,
		pacer:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}, nil
}

type rodSession struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *rod.Page
	timeout     time.Duration
	slowTimeout time.Duration
	downloadDir string
	pacer       *rate.Limiter
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	p := s.page.Context(ctx).Timeout(s.slowTimeout)
	if err := p.Navigate(url); err != nil {
		return classify("navigate "+url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify("wait load "+url, err)
	}
	return nil
}

func (s *rodSession) Reload(ctx context.Context) error {
	p := s.page.Context(ctx).Timeout(s.slowTimeout)
	if err := p.Reload(); err != nil {
		return classify("reload", err)
	}
	if err := p.WaitLoad(); err != nil {
		return classify("wait load after reload", err)
	}
	return nil
}

func (s *rodSession) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.timeout).Element(selector)
	if err != nil {
		return nil, classify("find "+selector, err)
	}
	return el, nil
}

func (s *rodSession) WaitVisible(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return classify("wait visible "+selector, err)
	}
	return nil
}

func (s *rodSession) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click "+selector, err)
	}
	return nil
}

func (s *rodSession) ClickText(ctx context.Context, selector, text string) error {
	el, err := s.page.Context(ctx).Timeout(s.timeout).ElementR(selector, regexp.QuoteMeta(text))
	if err != nil {
		return classify(fmt.Sprintf("find %s with %q", selector, text), err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify("click "+selector, err)
	}
	return nil
}

func (s *rodSession) Input(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return classify("input "+selector, err)
	}
	return nil
}

func (s *rodSession) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", classify("text "+selector, err)
	}
	return text, nil
}

func (s *rodSession) Texts(ctx context.Context, selector string) ([]string, error) {
	if err := s.WaitVisible(ctx, selector); err != nil {
		return nil, err
	}
	els, err := s.page.Context(ctx).Timeout(s.timeout).Elements(selector)
	if err != nil {
		return nil, classify("find all "+selector, err)
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			return nil, classify("text "+selector, err)
		}
		texts = append(texts, t)
	}
	return texts, nil
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).Timeout(s.timeout).HTML()
	if err != nil {
		return "", classify("page html", err)
	}
	return html, nil
}

func (s *rodSession) Download(ctx context.Context, trigger func(ctx context.Context) error) (string, error) {
	b := s.browser.Context(ctx).Timeout(s.slowTimeout)
	wait := b.WaitDownload(s.downloadDir)

	if err := trigger(ctx); err != nil {
		return "", err
	}

	info := wait()
	if info == nil || info.GUID == "" {
		return "", apperrors.NewTransientPageError("download did not complete", ctx.Err())
	}
	return filepath.Join(s.downloadDir, info.GUID), nil
}

func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

// classify переводит ошибки rod/cdp в таксономию приложения
func classify(op string, err error) error {
	var objNotFound *rod.ObjectNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTransientPageError(op+": timed out", err)
	case errors.As(err, &objNotFound),
		errors.Is(err, cdp.ErrCtxNotFound),
		errors.Is(err, cdp.ErrCtxDestroyed),
		errors.Is(err, cdp.ErrObjNotFound),
		errors.Is(err, cdp.ErrSessionNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed):
		return apperrors.NewSessionStaleError(op+": stale session", err)
	}
	return apperrors.NewTransientPageError(op, err)
}
