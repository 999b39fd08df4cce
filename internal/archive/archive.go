// Package archive looks up a URL's snapshot history in the public web
// archive's CDX index.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public CDX index endpoint.
const DefaultBaseURL = "https://web.archive.org/cdx/search/cdx"

// Dates are the first and last snapshot dates for a URL, ISO formatted
// (2006-01-02). A nil field means no snapshot on that end.
type Dates struct {
	First *string `json:"first,omitempty"`
	Last  *string `json:"last,omitempty"`
}

// Client queries the CDX index.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the CDX endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// NewClient creates an archive Client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger.With("component", "archive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dates returns the first and last archived snapshot dates for a URL.
// Lookups are best effort: a failed or empty side stays nil and an
// error is returned only when both queries fail outright.
func (c *Client) Dates(ctx context.Context, target string) (*Dates, error) {
	d := &Dates{}

	first, errFirst := c.snapshot(ctx, target, false)
	if first != "" {
		d.First = &first
	}
	last, errLast := c.snapshot(ctx, target, true)
	if last != "" {
		d.Last = &last
	}

	if errFirst != nil && errLast != nil {
		return d, fmt.Errorf("archive lookup failed: %w", errFirst)
	}
	return d, nil
}

// snapshot queries the CDX index for one end of the snapshot range.
// reverse=true asks for the newest snapshot instead of the oldest.
func (c *Client) snapshot(ctx context.Context, target string, reverse bool) (string, error) {
	params := url.Values{
		"url":    {target},
		"limit":  {"1"},
		"output": {"json"},
		"fl":     {"timestamp"},
	}
	if reverse {
		params.Set("sort", "reverse")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("archive CDX: HTTP %d", resp.StatusCode)
	}

	// Response shape: [["timestamp"],["20240115093000"]].
	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return "", fmt.Errorf("decode CDX response: %w", err)
	}
	if len(rows) < 2 || len(rows[1]) == 0 {
		return "", nil
	}

	ts := rows[1][0]
	if len(ts) < 8 {
		return "", fmt.Errorf("malformed CDX timestamp %q", ts)
	}
	parsed, err := time.Parse("20060102", ts[:8])
	if err != nil {
		return "", fmt.Errorf("malformed CDX timestamp %q: %w", ts, err)
	}
	return parsed.Format("2006-01-02"), nil
}
