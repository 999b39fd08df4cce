package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alex4udak-blip/SEO-Pocket/internal/config"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Render fetches pages through a managed browser-rendering API. The
// provider runs the headless browser and the proxy rotation; we send a
// URL and get fully rendered HTML back. Traffic arrives at the origin
// as a regular visitor, so this strategy has no crawler provenance.
type Render struct {
	endpoint    string
	apiKey      string
	maxBodySize int64
	client      *http.Client
	logger      *slog.Logger
}

// NewRender creates the rendering-API strategy. An empty API key
// leaves the strategy registered but unavailable.
func NewRender(cfg config.RenderConfig, maxBodySize int64, logger *slog.Logger) *Render {
	if logger == nil {
		logger = slog.Default()
	}
	return &Render{
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		maxBodySize: maxBodySize,
		client:      newHTTPClient(cfg.Timeout),
		logger:      logger.With("component", "render"),
	}
}

func (r *Render) Name() string            { return "render" }
func (r *Render) CloakedProvenance() bool { return false }

func (r *Render) Available(context.Context) error {
	if r.apiKey == "" {
		return &types.ConfigError{Strategy: r.Name(), Reason: "no API key"}
	}
	return nil
}

// Fetch asks the rendering API for the browser-rendered HTML of a URL.
func (r *Render) Fetch(ctx context.Context, target string) (*types.RawResult, error) {
	start := time.Now()

	payload, err := json.Marshal(map[string]any{
		"url":         target,
		"browserHtml": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// API key as username, empty password.
	req.SetBasicAuth(r.apiKey, "")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, &types.ConfigError{Strategy: r.Name(), Reason: "invalid API key"}
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("render: request rejected for %s", target)
	case 520:
		return nil, fmt.Errorf("render: target site error for %s", target)
	default:
		return nil, fmt.Errorf("render: HTTP %d", resp.StatusCode)
	}

	var out struct {
		BrowserHTML string `json:"browserHtml"`
		StatusCode  int    `json:"statusCode"`
		URL         string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	if out.BrowserHTML == "" {
		return nil, types.ErrEmptyResponse
	}

	status := out.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	r.logger.Debug("render fetch complete", "url", target, "bytes", len(out.BrowserHTML), "duration", time.Since(start))
	return types.SuccessResult(out.BrowserHTML, status, out.URL, time.Since(start)), nil
}

func (r *Render) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
