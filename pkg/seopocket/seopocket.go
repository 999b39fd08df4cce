// Package seopocket provides the public API for embedding the
// analyzer as a library.
//
// Example usage:
//
//	client, err := seopocket.New(config.DefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	analysis, err := client.Analyze(ctx, "https://example.com/",
//	    seopocket.AnalyzeOptions{DetectCloaking: true})
package seopocket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex4udak-blip/SEO-Pocket/internal/archive"
	"github.com/alex4udak-blip/SEO-Pocket/internal/block"
	"github.com/alex4udak-blip/SEO-Pocket/internal/cache"
	"github.com/alex4udak-blip/SEO-Pocket/internal/cloaking"
	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/engine"
	"github.com/alex4udak-blip/SEO-Pocket/internal/fetcher"
	"github.com/alex4udak-blip/SEO-Pocket/internal/seo"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Client is the assembled analyzer: strategy cascade, cache, detector,
// comparator, and extractor built from one Config.
type Client struct {
	cfg        *config.Config
	registry   *fetcher.Registry
	visitor    fetcher.Strategy
	browser    *fetcher.Browser
	proxied    *fetcher.Browser
	htmlCache  *cache.HTMLCache
	detector   *block.Detector
	comparator *cloaking.Comparator
	extractor  *seo.Extractor
	archive    *archive.Client
	engine     *engine.Engine
	logger     *slog.Logger
}

// New builds a Client from config. The MongoDB cache backend is
// optional: a failed connection degrades to the local store with a
// warning, never an error.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var external cache.Store
	if cfg.Cache.MongoURI != "" {
		store, err := cache.NewMongoStore(cfg.Cache.MongoURI, cfg.Cache.MongoDatabase, cfg.Cache.MongoCollection, cfg.Cache.TTL, logger)
		if err != nil {
			logger.Warn("mongodb cache unavailable, using local store only", "error", err)
		} else {
			external = store
		}
	}

	c := &Client{
		cfg:        cfg,
		registry:   fetcher.NewRegistry(),
		browser:    fetcher.NewBrowser("", logger),
		htmlCache:  cache.New(cfg.Cache.TTL, external, logger),
		detector:   block.NewDetector(logger),
		comparator: cloaking.NewComparator(logger, cloaking.WithStrict(cfg.Cloaking.Strict), cloaking.WithThresholds(cfg.Cloaking.AbsThreshold, cfg.Cloaking.RelThreshold)),
		extractor:  seo.NewExtractor(logger),
		archive:    archive.NewClient(logger),
		logger:     logger,
	}
	if cfg.Strategies.Browser.ProxyURL != "" {
		c.proxied = fetcher.NewBrowser(cfg.Strategies.Browser.ProxyURL, logger)
	}

	for i, name := range cfg.Strategies.Order {
		s, err := c.buildStrategy(name)
		if err != nil {
			return nil, err
		}
		c.registry.Register(s, i)
	}
	c.visitor = fetcher.NewBrowserStrategy("browser_visitor", c.browser, cfg.Strategies.Browser, c.detector, cfg.Fetch.VisitorUA, true, logger)

	c.engine = engine.New(engine.Config{
		Crawler:        c.registry.Ordered(),
		Visitor:        []fetcher.Strategy{c.visitor},
		Detector:       c.detector,
		Cache:          c.htmlCache,
		MinHTMLLength:  cfg.Fetch.MinHTMLLength,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		Coalesce:       cfg.Engine.Coalesce,
	}, logger)

	return c, nil
}

func (c *Client) buildStrategy(name string) (fetcher.Strategy, error) {
	cfg := c.cfg
	switch name {
	case "gateway":
		return fetcher.NewGateway(cfg.Strategies.Gateway, cfg.Fetch.MaxBodySize, c.logger), nil
	case "translate":
		return fetcher.NewTranslate(cfg.Strategies.Translate, cfg.Fetch.VisitorUA, cfg.Fetch.MaxBodySize, c.logger), nil
	case "render":
		return fetcher.NewRender(cfg.Strategies.Render, cfg.Fetch.MaxBodySize, c.logger), nil
	case "solver":
		return fetcher.NewSolver(cfg.Strategies.Solver, cfg.Fetch.CrawlerUA, c.logger), nil
	case "browser":
		return fetcher.NewBrowserStrategy("browser", c.browser, cfg.Strategies.Browser, c.detector, cfg.Fetch.CrawlerUA, false, c.logger), nil
	case "browser_stealth":
		return fetcher.NewBrowserStrategy("browser_stealth", c.browser, cfg.Strategies.Browser, c.detector, cfg.Fetch.CrawlerUA, true, c.logger), nil
	case "browser_proxy":
		b := c.proxied
		if b == nil {
			// Unproxied manager; the strategy reports itself
			// unavailable until a proxy is configured.
			b = fetcher.NewBrowser("", c.logger)
			c.proxied = b
		}
		return fetcher.NewBrowserStrategy("browser_proxy", b, cfg.Strategies.Browser, c.detector, cfg.Fetch.CrawlerUA, true, c.logger), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Engine exposes the underlying acquisition engine; it satisfies the
// API server's Analyzer interface.
func (c *Client) Engine() *engine.Engine { return c.engine }

// Extractor returns the metadata extractor.
func (c *Client) Extractor() *seo.Extractor { return c.extractor }

// Comparator returns the cloaking comparator.
func (c *Client) Comparator() *cloaking.Comparator { return c.comparator }

// Archive returns the snapshot-history client.
func (c *Client) Archive() *archive.Client { return c.archive }

// Acquire fetches one identity's view of a URL.
func (c *Client) Acquire(ctx context.Context, url string, identity types.Identity, opts types.Options) *types.Outcome {
	return c.engine.Acquire(ctx, url, identity, opts)
}

// AnalyzeOptions tune one Analyze call.
type AnalyzeOptions struct {
	// DetectCloaking also acquires the visitor view and runs the
	// comparator over the two documents.
	DetectCloaking bool

	// IncludeArchive looks up first/last snapshot dates.
	IncludeArchive bool

	// SkipCache bypasses the response cache read.
	SkipCache bool

	// SkipGateway disables the trusted gateway strategy.
	SkipGateway bool
}

// Analysis is one URL's full analysis result.
type Analysis struct {
	URL               string           `json:"url"`
	FinalURL          string           `json:"final_url"`
	Strategy          string           `json:"strategy"`
	Cached            bool             `json:"cached"`
	CloakedProvenance bool             `json:"cloaked_provenance"`
	ElapsedMS         int64            `json:"elapsed_ms"`
	Metadata          *seo.Metadata    `json:"metadata,omitempty"`
	Cloaking          *cloaking.Report `json:"cloaking,omitempty"`
	Archive           *archive.Dates   `json:"archive,omitempty"`
}

// Analyze acquires the crawler view of a URL, extracts its metadata,
// and optionally checks for cloaking and archive history.
func (c *Client) Analyze(ctx context.Context, url string, opts AnalyzeOptions) (*Analysis, error) {
	acqOpts := types.Options{NoCache: opts.SkipCache, SkipGateway: opts.SkipGateway}

	crawler := c.engine.Acquire(ctx, url, types.IdentityCrawler, acqOpts)
	if !crawler.Success {
		return nil, crawler.Err
	}

	analysis := &Analysis{
		URL:               url,
		FinalURL:          crawler.FinalURL,
		Strategy:          crawler.Strategy,
		Cached:            crawler.Cached,
		CloakedProvenance: crawler.CloakedProvenance,
		ElapsedMS:         crawler.Elapsed.Milliseconds(),
	}

	meta, err := c.extractor.Extract(crawler.HTML, crawler.FinalURL)
	if err != nil {
		c.logger.Warn("metadata extraction failed", "url", url, "error", err)
	} else {
		analysis.Metadata = meta
	}

	if opts.DetectCloaking {
		visitor := c.engine.Acquire(ctx, url, types.IdentityVisitor, acqOpts)
		if visitor.Success {
			analysis.Cloaking = c.comparator.Compare(crawler.HTML, visitor.HTML)
		} else {
			c.logger.Warn("visitor view unavailable, skipping cloaking check", "url", url, "error", visitor.Err)
		}
	}

	if opts.IncludeArchive {
		dates, err := c.archive.Dates(ctx, url)
		if err != nil {
			c.logger.Warn("archive lookup failed", "url", url, "error", err)
		} else {
			analysis.Archive = dates
		}
	}

	return analysis, nil
}

// Compare runs the cloaking comparator over two documents.
func (c *Client) Compare(crawlerHTML, visitorHTML string) *cloaking.Report {
	return c.comparator.Compare(crawlerHTML, visitorHTML)
}

// Close releases every resource: strategies, browsers, and cache.
func (c *Client) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(c.registry.Close())
	keep(c.visitor.Close())
	keep(c.browser.Close())
	if c.proxied != nil {
		keep(c.proxied.Close())
	}
	keep(c.htmlCache.Close())
	return firstErr
}
