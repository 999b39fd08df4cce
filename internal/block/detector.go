// Package block classifies raw fetch results as genuine content,
// denied responses, or automated-challenge pages.
package block

import (
	"log/slog"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Verdict is the classification of one fetch result.
type Verdict int

const (
	// VerdictSuccess means nothing in the result indicates denial.
	VerdictSuccess Verdict = iota

	// VerdictBlocked means the origin denied the request outright:
	// a blocking status code or an error-page title.
	VerdictBlocked

	// VerdictChallenged means the body is a browser-verification
	// interstitial rather than genuine content.
	VerdictChallenged
)

func (v Verdict) String() string {
	switch v {
	case VerdictBlocked:
		return "blocked"
	case VerdictChallenged:
		return "challenged"
	default:
		return "success"
	}
}

// Acceptable reports whether the verdict allows the engine to accept
// the content.
func (v Verdict) Acceptable() bool { return v == VerdictSuccess }

// Challenge phrases seen on browser-verification interstitials.
var defaultSignatures = []string{
	"just a moment",
	"checking your browser",
	"please wait",
	"ddos protection",
	"ray id",
	"cf-browser-verification",
	"challenge-running",
	"_cf_chl",
	"cdn-cgi/challenge",
}

// Titles that mark an error page rather than content. Matched against
// the whole trimmed, lowercased <title> text.
var defaultBlockingTitles = []string{
	"403 forbidden",
	"access denied",
	"blocked",
	"error",
	"just a moment",
}

var defaultBlockedStatuses = []int{401, 403, 429, 503}

// Detector classifies fetch results. One instance is shared by every
// strategy in an engine so classification stays uniform regardless of
// which strategy produced the content.
type Detector struct {
	signatures []string
	titles     []string
	statuses   map[int]struct{}
	logger     *slog.Logger
}

// Option customizes a Detector.
type Option func(*Detector)

// WithSignatures replaces the challenge-phrase list. Phrases are
// matched case-insensitively anywhere in the body.
func WithSignatures(signatures []string) Option {
	return func(d *Detector) {
		if len(signatures) > 0 {
			d.signatures = lowerAll(signatures)
		}
	}
}

// WithBlockingTitles replaces the error-page title list.
func WithBlockingTitles(titles []string) Option {
	return func(d *Detector) {
		if len(titles) > 0 {
			d.titles = lowerAll(titles)
		}
	}
}

// WithBlockedStatuses replaces the set of status codes treated as a
// hard block.
func WithBlockedStatuses(codes []int) Option {
	return func(d *Detector) {
		if len(codes) > 0 {
			d.statuses = make(map[int]struct{}, len(codes))
			for _, c := range codes {
				d.statuses[c] = struct{}{}
			}
		}
	}
}

// NewDetector creates a Detector with the default signature lists.
func NewDetector(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		signatures: lowerAll(defaultSignatures),
		titles:     lowerAll(defaultBlockingTitles),
		logger:     logger.With("component", "block_detector"),
	}
	WithBlockedStatuses(defaultBlockedStatuses)(d)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Classify decides whether a fetch result represents genuine content.
// Status codes are checked first and win regardless of body content.
func (d *Detector) Classify(htmlBody string, statusCode int) Verdict {
	if _, ok := d.statuses[statusCode]; ok {
		d.logger.Debug("blocked by status", "status", statusCode)
		return VerdictBlocked
	}

	lower := strings.ToLower(htmlBody)
	for _, sig := range d.signatures {
		if strings.Contains(lower, sig) {
			d.logger.Debug("challenge signature in body", "signature", sig)
			return VerdictChallenged
		}
	}

	if title := documentTitle(htmlBody); title != "" {
		for _, blocked := range d.titles {
			if title == blocked {
				d.logger.Debug("blocked by page title", "title", title)
				return VerdictBlocked
			}
		}
	}

	return VerdictSuccess
}

// documentTitle extracts the trimmed, lowercased <title> text from a
// document, or "" when there is none.
func documentTitle(htmlBody string) string {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return ""
	}
	node, err := htmlquery.Query(doc, "//title")
	if err != nil || node == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(htmlquery.InnerText(node)))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
