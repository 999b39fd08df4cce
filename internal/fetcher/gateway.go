package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Gateway fetches pages through a crawler-gateway API whose egress IPs
// origin servers trust as genuine search-crawler traffic. This is the
// only strategy that sees the content sites reserve for real crawlers,
// which is why it runs first in the cascade.
type Gateway struct {
	baseURL     string
	token       string
	lang        string
	maxBodySize int64
	client      *http.Client
	logger      *slog.Logger
}

// CanonicalInfo is the gateway's indexing view of one URL.
type CanonicalInfo struct {
	Canonical      string   `json:"canonical"`
	FirstIndexed   string   `json:"first_indexed,omitempty"`
	LastIndexed    string   `json:"last_indexed,omitempty"`
	RelatedDomains []string `json:"related_domains,omitempty"`
}

// NewGateway creates the gateway strategy from config. An empty token
// leaves the strategy registered but unavailable.
func NewGateway(cfg config.GatewayConfig, maxBodySize int64, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		baseURL:     cfg.BaseURL,
		token:       cfg.Token,
		lang:        cfg.Lang,
		maxBodySize: maxBodySize,
		client:      newHTTPClient(cfg.Timeout),
		logger:      logger.With("component", "gateway"),
	}
	if g.lang == "" {
		g.lang = "en"
	}
	return g
}

func (g *Gateway) Name() string            { return "gateway" }
func (g *Gateway) CloakedProvenance() bool { return true }

// Available reports whether a token is configured.
func (g *Gateway) Available(context.Context) error {
	if g.token == "" {
		return &types.ConfigError{Strategy: g.Name(), Reason: "no API token"}
	}
	return nil
}

// Fetch retrieves the crawler view of a URL.
func (g *Gateway) Fetch(ctx context.Context, target string) (*types.RawResult, error) {
	start := time.Now()

	resp, err := g.get(ctx, "/googlebot-view", target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		html, err := readBody(resp, g.maxBodySize)
		if err != nil {
			return nil, fmt.Errorf("read gateway response: %w", err)
		}
		g.logger.Debug("gateway fetch complete", "url", target, "bytes", len(html), "duration", time.Since(start))
		return types.SuccessResult(html, http.StatusOK, "", time.Since(start)), nil
	case http.StatusUnauthorized:
		return nil, &types.ConfigError{Strategy: g.Name(), Reason: "token expired or invalid"}
	case http.StatusForbidden:
		return nil, fmt.Errorf("gateway: subscription required for %s", target)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("gateway: rate limit exceeded")
	default:
		return nil, fmt.Errorf("gateway: HTTP %d", resp.StatusCode)
	}
}

// Canonical asks the gateway for the search engine's canonical URL and
// indexing dates for a page.
func (g *Gateway) Canonical(ctx context.Context, target string) (*CanonicalInfo, error) {
	if err := g.Available(ctx); err != nil {
		return nil, err
	}

	resp, err := g.get(ctx, "/canonical", target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway canonical: HTTP %d", resp.StatusCode)
	}

	var payload struct {
		Canonical      string   `json:"canonical"`
		FirstIndexed   string   `json:"firstIndexed"`
		LastIndexed    string   `json:"lastIndexed"`
		RelatedDomains []string `json:"relatedDomains"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode canonical response: %w", err)
	}

	return &CanonicalInfo{
		Canonical:      payload.Canonical,
		FirstIndexed:   payload.FirstIndexed,
		LastIndexed:    payload.LastIndexed,
		RelatedDomains: payload.RelatedDomains,
	}, nil
}

// CachedView returns the search engine's cached copy of a page and its
// cache date, when the gateway has one.
func (g *Gateway) CachedView(ctx context.Context, target string) (html, cacheDate string, err error) {
	if err := g.Available(ctx); err != nil {
		return "", "", err
	}

	resp, err := g.get(ctx, "/google-cache", target)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("gateway cached view: HTTP %d", resp.StatusCode)
	}

	html, err = readBody(resp, g.maxBodySize)
	if err != nil {
		return "", "", fmt.Errorf("read cached view: %w", err)
	}
	return html, resp.Header.Get("X-Cache-Date"), nil
}

func (g *Gateway) Close() error {
	g.client.CloseIdleConnections()
	return nil
}

func (g *Gateway) get(ctx context.Context, path, target string) (*http.Response, error) {
	endpoint := g.baseURL + path + "?" + url.Values{
		"url":  {target},
		"lang": {g.lang},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	return g.client.Do(req)
}
