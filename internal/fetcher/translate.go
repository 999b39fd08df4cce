package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Translate fetches pages through the public translation proxy. The
// proxy's egress IPs reverse-resolve to the search engine's
// infrastructure, so origin servers serve it the same content they
// serve genuine crawlers — even though the request itself carries a
// regular browser user agent (the proxy rejects crawler UAs).
type Translate struct {
	enabled     bool
	userAgent   string
	maxBodySize int64
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// translateParams route the proxied page through auto-detect → English.
const translateParams = "_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en"

// Wrapper markup the proxy injects into every page; stripped so the
// result reads as the origin document.
var translateCleanupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*src="[^"]*gstatic\.com/_/translate_http/[^"]*"[^>]*></script>`),
	regexp.MustCompile(`(?i)<link[^>]*href="[^"]*gstatic\.com/_/translate_http/[^"]*"[^>]*>`),
	regexp.MustCompile(`(?i)<meta http-equiv="X-Translated-By"[^>]*>`),
	regexp.MustCompile(`(?i)<meta http-equiv="X-Translated-To"[^>]*>`),
	regexp.MustCompile(`(?i)<meta name="robots" content="none">`),
	regexp.MustCompile(`(?i)<link[^>]*href="[^"]*fonts\.googleapis\.com[^"]*"[^>]*>`),
	regexp.MustCompile(`(?is)<script[^>]*>[^<]*gtElInit[^<]*</script>`),
	regexp.MustCompile(`(?is)<script id="google-translate-element-script"[^>]*>.*?</script>`),
}

// NewTranslate creates the translation-proxy strategy.
func NewTranslate(cfg config.TranslateConfig, userAgent string, maxBodySize int64, logger *slog.Logger) *Translate {
	if logger == nil {
		logger = slog.Default()
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Translate{
		enabled:     cfg.Enabled,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
		client:      newHTTPClient(cfg.Timeout),
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), burst),
		logger:      logger.With("component", "translate"),
	}
}

func (t *Translate) Name() string            { return "translate" }
func (t *Translate) CloakedProvenance() bool { return true }

func (t *Translate) Available(context.Context) error {
	if !t.enabled {
		return &types.ConfigError{Strategy: t.Name(), Reason: "disabled"}
	}
	return nil
}

// Fetch retrieves a URL through the translation proxy, strips the
// proxy wrapper, and rewrites proxied links back to the origin form.
func (t *Translate) Fetch(ctx context.Context, target string) (*types.RawResult, error) {
	start := time.Now()

	// The proxy is a shared public endpoint; hammering it gets the
	// whole egress range throttled.
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	proxyURL, err := buildTranslateURL(target)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proxyURL, nil)
	if err != nil {
		return nil, err
	}
	setBrowserHeaders(req, t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate proxy: HTTP %d", resp.StatusCode)
	}

	html, err := readBody(resp, t.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("read translate response: %w", err)
	}

	if strings.Contains(html, "Can't reach this website") ||
		strings.Contains(html, "Can&#39;t reach this website") {
		return nil, fmt.Errorf("translate proxy cannot reach %s", target)
	}

	// Genuine-document gate: the proxy serves tiny interstitials and
	// error shells with status 200.
	if len(html) <= 1000 || !strings.Contains(strings.ToLower(html), "<html") {
		return nil, fmt.Errorf("translate proxy returned non-document (%d bytes)", len(html))
	}

	u, _ := url.Parse(target)
	html = stripTranslateWrapper(html)
	html = rewriteTranslateLinks(html, u.Host)

	t.logger.Debug("translate fetch complete", "url", target, "bytes", len(html), "duration", time.Since(start))
	return types.SuccessResult(html, http.StatusOK, "", time.Since(start)), nil
}

func (t *Translate) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// buildTranslateURL converts a URL to its translation-proxy form:
// https://example.com/page?q=1 becomes
// https://example-com.translate.goog/page?_x_tr_sl=auto&_x_tr_tl=en&_x_tr_hl=en&q=1.
func buildTranslateURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", types.ErrInvalidURL, target, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q: missing host", types.ErrInvalidURL, target)
	}

	host := strings.ReplaceAll(u.Host, ".", "-")
	path := u.Path
	if path == "" {
		path = "/"
	}

	query := translateParams
	if u.RawQuery != "" {
		query += "&" + u.RawQuery
	}

	return "https://" + host + ".translate.goog" + path + "?" + query, nil
}

// stripTranslateWrapper removes the scripts, styles, and meta tags the
// proxy injects.
func stripTranslateWrapper(html string) string {
	for _, re := range translateCleanupPatterns {
		html = re.ReplaceAllString(html, "")
	}
	return html
}

// rewriteTranslateLinks points proxied hrefs back at the origin host.
func rewriteTranslateLinks(html, originalHost string) string {
	dashed := strings.ReplaceAll(originalHost, ".", "-")

	re := regexp.MustCompile(`(href|src)="https://` + regexp.QuoteMeta(dashed) + `\.translate\.goog([^"]*)\?[^"]*_x_tr[^"]*"`)
	html = re.ReplaceAllString(html, `$1="https://`+originalHost+`$2"`)

	return strings.ReplaceAll(html, dashed+".translate.goog", originalHost)
}
