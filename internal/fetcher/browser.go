package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/alex4udak-blip/SEO-Pocket/internal/block"
	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Browser owns one headless Chromium instance, shared by every
// browser strategy bound to it. The instance launches lazily on first
// use so a configured-but-unused browser costs nothing.
type Browser struct {
	proxyURL string
	logger   *slog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	startErr error
	started  bool
}

// NewBrowser creates a browser manager. proxyURL, when non-empty,
// routes all of the instance's traffic through that proxy.
func NewBrowser(proxyURL string, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		proxyURL: proxyURL,
		logger:   logger.With("component", "browser"),
	}
}

// instance returns the shared rod.Browser, launching it on first call.
// A failed launch is remembered; later calls fail fast.
func (b *Browser) instance() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return b.browser, b.startErr
	}
	b.started = true

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", "1920,1080")
	if b.proxyURL != "" {
		l = l.Proxy(b.proxyURL)
	}

	launchURL, err := l.Launch()
	if err != nil {
		b.startErr = fmt.Errorf("%w: launch: %v", types.ErrBrowserUnavailable, err)
		return nil, b.startErr
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		b.startErr = fmt.Errorf("%w: connect: %v", types.ErrBrowserUnavailable, err)
		return nil, b.startErr
	}

	b.browser = browser
	b.logger.Info("browser ready", "proxied", b.proxyURL != "")
	return b.browser, nil
}

// Close shuts down the browser instance if it was ever launched.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		err := b.browser.Close()
		b.browser = nil
		return err
	}
	return nil
}

// BrowserStrategy drives a shared Browser to render a page in-process.
// Variants differ only in name, user agent, stealth patching, and
// which Browser (plain or proxied) they ride on.
type BrowserStrategy struct {
	name          string
	browser       *Browser
	detector      *block.Detector
	userAgent     string
	useStealth    bool
	requireProxy  bool
	enabled       bool
	challengeWait time.Duration
	logger        *slog.Logger
}

// NewBrowserStrategy creates one browser-strategy variant. The
// detector drives the challenge-wait loop: when the rendered page is a
// verification interstitial, the strategy keeps the page open and
// polls until the interstitial clears or challengeWait expires.
func NewBrowserStrategy(name string, b *Browser, cfg config.BrowserConfig, detector *block.Detector, userAgent string, useStealth bool, logger *slog.Logger) *BrowserStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	wait := cfg.ChallengeWait
	if wait <= 0 {
		wait = 20 * time.Second
	}
	return &BrowserStrategy{
		name:          name,
		browser:       b,
		detector:      detector,
		userAgent:     userAgent,
		useStealth:    useStealth,
		requireProxy:  name == "browser_proxy",
		enabled:       cfg.Enabled,
		challengeWait: wait,
		logger:        logger.With("component", name),
	}
}

func (s *BrowserStrategy) Name() string            { return s.name }
func (s *BrowserStrategy) CloakedProvenance() bool { return false }

func (s *BrowserStrategy) Available(context.Context) error {
	if !s.enabled {
		return &types.ConfigError{Strategy: s.name, Reason: "disabled"}
	}
	if s.requireProxy && s.browser.proxyURL == "" {
		return &types.ConfigError{Strategy: s.name, Reason: "no proxy configured"}
	}
	return nil
}

// Fetch renders a URL in the shared browser and returns the settled
// DOM. Each fetch gets a fresh incognito page, so cookies and storage
// never leak between acquisitions.
func (s *BrowserStrategy) Fetch(ctx context.Context, target string) (*types.RawResult, error) {
	start := time.Now()

	br, err := s.browser.instance()
	if err != nil {
		return nil, err
	}

	page, err := s.newPage(br)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.userAgent}); err != nil {
		s.logger.Warn("failed to set user agent", "error", err)
	}

	if err := page.Navigate(target); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Warn("page stability timeout, continuing", "url", target, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	// A verification interstitial often clears on its own once the
	// browser's JS proves itself. Keep the page open and poll.
	if s.detector != nil && s.detector.Classify(html, 200) == block.VerdictChallenged {
		html, err = s.waitChallenge(ctx, page, html)
		if err != nil {
			return nil, err
		}
	}

	finalURL := target
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	s.logger.Debug("browser fetch complete", "url", target, "final_url", finalURL, "bytes", len(html), "duration", time.Since(start))

	// DevTools does not surface the document status code here; a page
	// that rendered at all is treated as 200 and left to the detector.
	return types.SuccessResult(html, 200, finalURL, time.Since(start)), nil
}

func (s *BrowserStrategy) newPage(br *rod.Browser) (*rod.Page, error) {
	if s.useStealth {
		return stealth.Page(br)
	}
	inc, err := br.Incognito()
	if err != nil {
		return nil, err
	}
	return inc.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// waitChallenge polls the page until the verification interstitial
// clears or the challenge budget runs out.
func (s *BrowserStrategy) waitChallenge(ctx context.Context, page *rod.Page, html string) (string, error) {
	s.logger.Debug("challenge interstitial, waiting", "budget", s.challengeWait)

	deadline := time.Now().Add(s.challengeWait)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		current, err := page.HTML()
		if err != nil {
			return "", fmt.Errorf("read page: %w", err)
		}
		html = current
		if s.detector.Classify(html, 200) != block.VerdictChallenged {
			s.logger.Debug("challenge cleared")
			return html, nil
		}
	}

	return "", fmt.Errorf("%w: challenge did not clear within %s", types.ErrBlocked, s.challengeWait)
}

// Close is a no-op; the shared Browser is closed by its owner.
func (s *BrowserStrategy) Close() error { return nil }
