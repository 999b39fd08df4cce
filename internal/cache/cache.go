// Package cache holds previously-fetched HTML for a short TTL so that
// repeated analyses of the same URL do not re-run the acquisition
// cascade. A process-local store always participates; a shared
// external store joins it when configured. Cache failures are never
// load-bearing: every backend error degrades to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// DefaultTTL matches the upstream default of one hour.
const DefaultTTL = time.Hour

// Store is a single cache backend addressed by hashed key.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, html string) error
	Close() error
}

// Key hashes a normalized URL into a fixed-size cache key.
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(normalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])[:32]
}

// normalizeURL lowercases the scheme and host and strips the fragment.
// Query strings are preserved so distinct queries stay distinct
// entries.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String()
}

// HTMLCache is the layered response cache: an optional shared external
// store tried first, backed by a process-local store that is always
// written.
type HTMLCache struct {
	ttl      time.Duration
	local    *MemoryStore
	external Store
	logger   *slog.Logger
}

// New creates an HTMLCache. external may be nil, leaving the local
// store as the only backend. A non-positive ttl falls back to
// DefaultTTL.
func New(ttl time.Duration, external Store, logger *slog.Logger) *HTMLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLCache{
		ttl:      ttl,
		local:    NewMemoryStore(ttl),
		external: external,
		logger:   logger.With("component", "cache"),
	}
}

// TTL returns the uniform entry lifetime.
func (c *HTMLCache) TTL() time.Duration { return c.ttl }

// Backend names the active backend layout for health reporting.
func (c *HTMLCache) Backend() string {
	if c.external != nil {
		return c.external.Name() + "+" + c.local.Name()
	}
	return c.local.Name()
}

// Get returns the cached HTML for a URL. Expired entries are
// indistinguishable from absent ones.
func (c *HTMLCache) Get(ctx context.Context, rawURL string) (string, bool) {
	key := Key(rawURL)

	if c.external != nil {
		html, ok, err := c.external.Get(ctx, key)
		if err != nil {
			c.logger.Warn("external cache get failed", "backend", c.external.Name(), "error", err)
		} else if ok {
			c.logger.Debug("cache hit", "backend", c.external.Name(), "url", rawURL)
			return html, true
		}
	}

	html, ok, _ := c.local.Get(ctx, key)
	if ok {
		c.logger.Debug("cache hit", "backend", c.local.Name(), "url", rawURL)
	}
	return html, ok
}

// Set stores HTML for a URL in every configured backend. Entries are
// written wholesale; an existing entry for the same URL is replaced,
// never merged.
func (c *HTMLCache) Set(ctx context.Context, rawURL, html string) {
	key := Key(rawURL)

	if c.external != nil {
		if err := c.external.Set(ctx, key, html); err != nil {
			c.logger.Warn("external cache set failed", "backend", c.external.Name(), "error", err)
		}
	}

	if err := c.local.Set(ctx, key, html); err != nil {
		c.logger.Warn("local cache set failed", "error", err)
	}
}

// Close releases the external backend, if any.
func (c *HTMLCache) Close() error {
	if c.external != nil {
		return c.external.Close()
	}
	return nil
}
