package discover

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/pipeline"
)

// anchorScript pulls every rendered anchor href out of the live DOM.
const anchorScript = `Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`

// Config tunes the scroll loop. Zero values fall back to defaults in New.
type Config struct {
	FeedURL        string
	TargetCount    int
	MaxRounds      int
	StaleThreshold int
	ScrollMin      int
	ScrollMax      int
	DelayMin       time.Duration
	DelayMax       time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	RecoveryScroll int
	RecoveryWait   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = 60
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 3
	}
	if c.ScrollMin <= 0 {
		c.ScrollMin = 600
	}
	if c.ScrollMax <= c.ScrollMin {
		c.ScrollMax = c.ScrollMin + 600
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 800 * time.Millisecond
	}
	if c.DelayMax <= c.DelayMin {
		c.DelayMax = c.DelayMin + 1200*time.Millisecond
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 8 * time.Second
	}
	if c.RecoveryScroll <= 0 {
		c.RecoveryScroll = 4000
	}
	if c.RecoveryWait <= 0 {
		c.RecoveryWait = 5 * time.Second
	}
	return c
}

// Result is what one discovery run produced. Complete is false when a
// fatal session failure aborted the loop early; the URLs collected up to
// that point are still returned.
type Result struct {
	URLs     []pipeline.DiscoveredURL
	Complete bool
	Rounds   int
	Err      error
}

// MetricsRecorder receives one observation per scroll round. A nil
// recorder disables instrumentation.
type MetricsRecorder interface {
	ObserveDiscoveryRound(newURLs int)
}

// Engine runs the single-threaded scroll loop. One browser session,
// strictly sequential scroll, extract, wait steps.
type Engine struct {
	browser  Browser
	pattern  *LinkPattern
	recorder MetricsRecorder
	cfg      Config
	logger   *zap.Logger
}

// NewEngine constructs a discovery engine. recorder may be nil.
func NewEngine(browser Browser, pattern *LinkPattern, recorder MetricsRecorder, cfg Config, logger *zap.Logger) (*Engine, error) {
	if browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	if pattern == nil {
		return nil, fmt.Errorf("link pattern is required")
	}
	if cfg.TargetCount <= 0 {
		return nil, fmt.Errorf("target count must be > 0")
	}
	if cfg.FeedURL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	return &Engine{
		browser:  browser,
		pattern:  pattern,
		recorder: recorder,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// Discover scrolls the feed until the target count, the round ceiling, or
// stale-round recovery exhaustion terminates the loop.
func (e *Engine) Discover(ctx context.Context) Result {
	if err := e.browser.Navigate(ctx, e.cfg.FeedURL); err != nil {
		return Result{Err: fmt.Errorf("navigate feed: %w", err)}
	}

	seen := make(map[string]struct{})
	var collected []pipeline.DiscoveredURL
	stale := 0
	recovered := false

	round := 0
	for ; round < e.cfg.MaxRounds && len(collected) < e.cfg.TargetCount; round++ {
		added := e.collectRound(ctx, seen, &collected)
		if e.recorder != nil {
			e.recorder.ObserveDiscoveryRound(added)
		}

		if len(collected) >= e.cfg.TargetCount {
			break
		}

		if added == 0 {
			stale++
			e.logger.Debug("stale discovery round",
				zap.Int("round", round),
				zap.Int("stale", stale),
				zap.Int("collected", len(collected)),
			)
			if stale >= e.cfg.StaleThreshold {
				if recovered {
					// Recovery already spent; one final check came up
					// empty, so the feed is out of new items.
					break
				}
				recovered = true
				if err := e.aggressiveRecovery(ctx); err != nil {
					return e.fatal(collected, round, err)
				}
				continue
			}
			if err := e.browser.Wait(ctx, e.backoff(stale)); err != nil {
				return e.fatal(collected, round, err)
			}
			if err := e.browser.ScrollBy(ctx, 0, e.scrollDistance()); err != nil {
				return e.fatal(collected, round, err)
			}
			continue
		}

		stale = 0
		if err := e.browser.ScrollBy(ctx, 0, e.scrollDistance()); err != nil {
			return e.fatal(collected, round, err)
		}
		if err := e.browser.Wait(ctx, e.scrollDelay()); err != nil {
			return e.fatal(collected, round, err)
		}
	}

	e.logger.Info("discovery finished",
		zap.Int("rounds", round),
		zap.Int("collected", len(collected)),
		zap.Int("target", e.cfg.TargetCount),
	)
	return Result{URLs: collected, Complete: true, Rounds: round}
}

// collectRound extracts currently rendered links and appends the unseen
// ones in appearance order. Extraction failures count as zero new URLs.
func (e *Engine) collectRound(ctx context.Context, seen map[string]struct{}, collected *[]pipeline.DiscoveredURL) int {
	hrefs, err := e.browser.Evaluate(ctx, anchorScript)
	if err != nil || len(hrefs) == 0 {
		hrefs = e.anchorsFromHTML(ctx)
	}

	added := 0
	for _, href := range hrefs {
		if len(*collected) >= e.cfg.TargetCount {
			break
		}
		postID, ok := e.pattern.Match(href)
		if !ok {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		*collected = append(*collected, pipeline.DiscoveredURL{
			URL:           href,
			PostID:        postID,
			DiscoveryRank: len(*collected),
		})
		added++
	}
	return added
}

// anchorsFromHTML is the fallback extraction path when script evaluation
// is unavailable.
func (e *Engine) anchorsFromHTML(ctx context.Context) []string {
	html, err := e.browser.CurrentHTML(ctx)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// aggressiveRecovery is the one-time escape hatch for a stuck feed: a
// large scroll jump, a brief up/down oscillation, then an extended wait.
func (e *Engine) aggressiveRecovery(ctx context.Context) error {
	e.logger.Info("stale threshold crossed, attempting recovery scroll")
	steps := []struct {
		dy   int
		wait time.Duration
	}{
		{e.cfg.RecoveryScroll, 500 * time.Millisecond},
		{-e.cfg.RecoveryScroll / 4, 400 * time.Millisecond},
		{e.cfg.RecoveryScroll / 4, e.cfg.RecoveryWait},
	}
	for _, step := range steps {
		if err := e.browser.ScrollBy(ctx, 0, step.dy); err != nil {
			return fmt.Errorf("recovery scroll: %w", err)
		}
		if err := e.browser.Wait(ctx, step.wait); err != nil {
			return fmt.Errorf("recovery wait: %w", err)
		}
	}
	return nil
}

func (e *Engine) fatal(collected []pipeline.DiscoveredURL, rounds int, err error) Result {
	e.logger.Error("discovery session failure", zap.Error(err), zap.Int("collected", len(collected)))
	return Result{URLs: collected, Rounds: rounds, Err: err}
}

// backoff grows with consecutive stale rounds, jittered and capped.
func (e *Engine) backoff(stale int) time.Duration {
	d := e.cfg.BackoffBase * time.Duration(1<<uint(stale-1))
	if d > e.cfg.BackoffMax {
		d = e.cfg.BackoffMax
	}
	return d/2 + randomJitter(d/2)
}

// scrollDistance varies per round so the pacing does not look robotic.
func (e *Engine) scrollDistance() int {
	span := e.cfg.ScrollMax - e.cfg.ScrollMin
	return e.cfg.ScrollMin + int(randomJitter(time.Duration(span)))
}

func (e *Engine) scrollDelay() time.Duration {
	span := e.cfg.DelayMax - e.cfg.DelayMin
	return e.cfg.DelayMin + randomJitter(span)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
