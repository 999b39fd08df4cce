// Package seo extracts SEO-relevant metadata from acquired HTML.
package seo

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Hreflang is one alternate-language link.
type Hreflang struct {
	Lang string `json:"lang"`
	URL  string `json:"url"`
}

// Metadata is the structured SEO view of one document.
type Metadata struct {
	Title         string     `json:"title,omitempty"`
	H1            string     `json:"h1,omitempty"`
	Description   string     `json:"description,omitempty"`
	Canonical     string     `json:"canonical,omitempty"`
	HTMLLang      string     `json:"html_lang,omitempty"`
	Hreflang      []Hreflang `json:"hreflang,omitempty"`
	Robots        string     `json:"robots,omitempty"`
	AlternateURLs []string   `json:"alternate_urls,omitempty"`
}

// Extractor parses documents into Metadata.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a metadata extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "seo_extractor")}
}

// Extract parses html and pulls the SEO field set. Relative canonical
// and alternate hrefs are resolved against baseURL when it parses.
func (e *Extractor) Extract(html, baseURL string) (*Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	meta := &Metadata{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		H1:          strings.TrimSpace(doc.Find("h1").First().Text()),
		Description: metaContent(doc, "description"),
		Robots:      metaContent(doc, "robots"),
	}

	if lang, ok := doc.Find("html").Attr("lang"); ok {
		meta.HTMLLang = strings.TrimSpace(lang)
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		meta.Canonical = resolveHref(base, canonical)
	}

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		if lang, ok := sel.Attr("hreflang"); ok {
			meta.Hreflang = append(meta.Hreflang, Hreflang{
				Lang: lang,
				URL:  resolveHref(base, href),
			})
			return
		}
		// Feed links are alternates in markup only.
		linkType, _ := sel.Attr("type")
		lower := strings.ToLower(linkType)
		if strings.Contains(lower, "rss") || strings.Contains(lower, "atom") {
			return
		}
		meta.AlternateURLs = append(meta.AlternateURLs, resolveHref(base, href))
	})

	return meta, nil
}

// resolveHref makes href absolute against base when both parse.
func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).Attr("content")
	return strings.TrimSpace(content)
}

// --- Fast Path ---

var (
	fastTitle     = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	fastH1        = regexp.MustCompile(`(?i)<h1[^>]*>([^<]+)</h1>`)
	fastDesc      = regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*content=["']([^"']+)["']`)
	fastDescRev   = regexp.MustCompile(`(?i)<meta[^>]*content=["']([^"']+)["'][^>]*name=["']description["']`)
	fastCanonical = regexp.MustCompile(`(?i)<link[^>]*rel=["']canonical["'][^>]*href=["']([^"']+)["']`)
	fastLang      = regexp.MustCompile(`(?i)<html[^>]*lang=["']([^"']+)["']`)
	fastRobots    = regexp.MustCompile(`(?i)<meta[^>]*name=["']robots["'][^>]*content=["']([^"']+)["']`)
)

// ExtractFast pulls the basic fields with regular expressions, for
// callers that only need a shallow look at very large documents. No
// hreflang or alternate handling; hrefs are left as written.
func ExtractFast(html string) *Metadata {
	meta := &Metadata{}
	if m := fastTitle.FindStringSubmatch(html); m != nil {
		meta.Title = strings.TrimSpace(m[1])
	}
	if m := fastH1.FindStringSubmatch(html); m != nil {
		meta.H1 = strings.TrimSpace(m[1])
	}
	if m := fastDesc.FindStringSubmatch(html); m != nil {
		meta.Description = strings.TrimSpace(m[1])
	} else if m := fastDescRev.FindStringSubmatch(html); m != nil {
		meta.Description = strings.TrimSpace(m[1])
	}
	if m := fastCanonical.FindStringSubmatch(html); m != nil {
		meta.Canonical = strings.TrimSpace(m[1])
	}
	if m := fastLang.FindStringSubmatch(html); m != nil {
		meta.HTMLLang = strings.TrimSpace(m[1])
	}
	if m := fastRobots.FindStringSubmatch(html); m != nil {
		meta.Robots = strings.TrimSpace(m[1])
	}
	return meta
}
