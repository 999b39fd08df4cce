// Package cloaking compares the HTML served to a crawler identity
// against the HTML served to an ordinary visitor and reports
// identity-based content discrimination.
package cloaking

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// Element lists in a Report never grow past this size.
const maxElements = 10

// Default detection thresholds: a side's unique-line count signals
// cloaking only when it clears both, which keeps short pages from
// tripping the ratio on tiny absolute differences.
const (
	DefaultAbsThreshold = 50
	DefaultRelThreshold = 0.10
)

// Markup that routinely differs between renders without indicating
// cloaking; stripped before the line diff unless strict mode is on.
var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?s)<!--.*?-->`),
	regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
	regexp.MustCompile(`(?i)data-[a-z-]+="[^"]*"`),
	regexp.MustCompile(`(?i)id="[^"]*"`),
	regexp.MustCompile(`(?i)class="[^"]*"`),
}

// SEO-relevant elements, extracted from the raw documents. firstOnly
// limits a pattern to its first match (a page has one meaningful h1).
var seoPatterns = []struct {
	re        *regexp.Regexp
	firstOnly bool
}{
	{re: regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`)},
	{re: regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*>`)},
	{re: regexp.MustCompile(`(?i)<meta[^>]*name=["']robots["'][^>]*>`)},
	{re: regexp.MustCompile(`(?i)<link[^>]*rel=["']canonical["'][^>]*>`)},
	{re: regexp.MustCompile(`(?is)<h1[^>]*>.*?</h1>`), firstOnly: true},
	{re: regexp.MustCompile(`(?i)<link[^>]*rel=["']alternate["'][^>]*hreflang[^>]*>`)},
}

// Report is the outcome of one comparison.
type Report struct {
	Detected            bool     `json:"detected"`
	CrawlerOnlyLines    int      `json:"crawler_only_lines"`
	VisitorOnlyLines    int      `json:"visitor_only_lines"`
	CrawlerOnlyElements []string `json:"crawler_only_elements"`
	VisitorOnlyElements []string `json:"visitor_only_elements"`
}

// Comparator diffs two HTML documents acquired for the same URL under
// different identities.
type Comparator struct {
	strict       bool
	absThreshold int
	relThreshold float64
	logger       *slog.Logger
}

// Option customizes a Comparator.
type Option func(*Comparator)

// WithStrict disables normalization, so scripts, comments, and
// dynamic attributes count as differences.
func WithStrict(strict bool) Option {
	return func(c *Comparator) { c.strict = strict }
}

// WithThresholds overrides the dual line-count thresholds.
func WithThresholds(abs int, rel float64) Option {
	return func(c *Comparator) {
		if abs > 0 {
			c.absThreshold = abs
		}
		if rel > 0 {
			c.relThreshold = rel
		}
	}
}

// NewComparator creates a Comparator with the default thresholds.
func NewComparator(logger *slog.Logger, opts ...Option) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Comparator{
		absThreshold: DefaultAbsThreshold,
		relThreshold: DefaultRelThreshold,
		logger:       logger.With("component", "cloaking"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare diffs the crawler-identity document against the
// visitor-identity document. Cloaking is reported when any
// SEO-relevant element differs, or when either side's unique-line
// count clears both thresholds.
func (c *Comparator) Compare(crawlerHTML, visitorHTML string) *Report {
	crawlerLines := splitNormalizedLines(c.normalize(crawlerHTML))
	visitorLines := splitNormalizedLines(c.normalize(visitorHTML))
	crawlerOnly, visitorOnly := diffCounts(crawlerLines, visitorLines)

	crawlerSEO := extractSEOElements(crawlerHTML)
	visitorSEO := extractSEOElements(visitorHTML)
	crawlerOnlyEl := setDifference(crawlerSEO, visitorSEO)
	visitorOnlyEl := setDifference(visitorSEO, crawlerSEO)

	detected := len(crawlerOnlyEl) > 0 || len(visitorOnlyEl) > 0 ||
		c.exceedsThresholds(crawlerOnly, len(crawlerLines)) ||
		c.exceedsThresholds(visitorOnly, len(visitorLines))

	c.logger.Debug("comparison done",
		"detected", detected,
		"crawler_only_lines", crawlerOnly,
		"visitor_only_lines", visitorOnly,
		"crawler_only_elements", len(crawlerOnlyEl),
		"visitor_only_elements", len(visitorOnlyEl))

	return &Report{
		Detected:            detected,
		CrawlerOnlyLines:    crawlerOnly,
		VisitorOnlyLines:    visitorOnly,
		CrawlerOnlyElements: capElements(crawlerOnlyEl),
		VisitorOnlyElements: capElements(visitorOnlyEl),
	}
}

func (c *Comparator) exceedsThresholds(unique, total int) bool {
	return unique > c.absThreshold && float64(unique) > float64(total)*c.relThreshold
}

// normalize strips routinely-dynamic markup. Strict mode leaves the
// document untouched.
func (c *Comparator) normalize(html string) string {
	if c.strict {
		return html
	}
	for _, re := range ignorePatterns {
		html = re.ReplaceAllString(html, "")
	}
	return html
}

// splitNormalizedLines splits a document into whitespace-collapsed,
// non-empty lines.
func splitNormalizedLines(html string) []string {
	raw := strings.Split(html, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, strings.Join(fields, " "))
	}
	return lines
}

// extractSEOElements pulls the SEO allowlist out of a raw document.
func extractSEOElements(html string) map[string]struct{} {
	elements := make(map[string]struct{})
	for _, p := range seoPatterns {
		if p.firstOnly {
			if m := p.re.FindString(html); m != "" {
				elements[m] = struct{}{}
			}
			continue
		}
		for _, m := range p.re.FindAllString(html, -1) {
			elements[m] = struct{}{}
		}
	}
	return elements
}

// setDifference returns a-b, sorted for deterministic reports.
func setDifference(a, b map[string]struct{}) []string {
	var out []string
	for el := range a {
		if _, ok := b[el]; !ok {
			out = append(out, el)
		}
	}
	sort.Strings(out)
	return out
}

func capElements(elements []string) []string {
	if len(elements) > maxElements {
		return elements[:maxElements]
	}
	if elements == nil {
		return []string{}
	}
	return elements
}
