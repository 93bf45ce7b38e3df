// Package browser provides a chromedp-backed rendered session for feed
// discovery. The session holds one browser tab open across calls so
// infinite-scroll state survives between rounds.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the headless session.
type Config struct {
	UserAgent         string
	Headless          bool
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	WindowWidth       int
	WindowHeight      int
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 15 * time.Second
	}
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1280
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 1024
	}
	return c
}

// Session is a single long-lived browser tab.
type Session struct {
	cfg         Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewSession starts the browser and opens the tab. Callers own the
// session lifetime and must Close it.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", false),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	if err := chromedp.Run(tabCtx, s.sessionSetupAction()); err != nil {
		s.Close()
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	return s, nil
}

func (s *Session) sessionSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
}

// Navigate loads a URL in the session tab and waits for the body to be
// ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := s.opContext(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(opCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.logger.Debug("navigated", zap.String("url", url))
	return nil
}

// CurrentHTML returns the full rendered document markup.
func (s *Session) CurrentHTML(ctx context.Context) (string, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(opCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// Evaluate runs a script expected to yield a string array.
func (s *Session) Evaluate(ctx context.Context, script string) ([]string, error) {
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()

	var out []string
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &out)); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}
	return out, nil
}

// ScrollBy moves the viewport by the given deltas.
func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	opCtx, cancel := s.opContext(ctx, s.cfg.ActionTimeout)
	defer cancel()

	script := fmt.Sprintf(`window.scrollBy(%d, %d)`, dx, dy)
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll by (%d,%d): %w", dx, dy, err)
	}
	return nil
}

// Wait sleeps for d unless the caller context or the tab dies first.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait canceled: %w", ctx.Err())
	case <-s.tabCtx.Done():
		return fmt.Errorf("browser session ended: %w", s.tabCtx.Err())
	}
}

// opContext derives a per-operation context from the tab so chromedp
// actions target the live session, while still honoring the caller's
// cancellation and the operation timeout.
func (s *Session) opContext(caller context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := context.AfterFunc(caller, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
