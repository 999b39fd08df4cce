// Package engine runs the acquisition cascade: try each configured
// strategy in priority order until one produces content the block
// detector accepts, consulting the response cache on the way in and
// writing through on the way out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alex4udak-blip/SEO-Pocket/internal/block"
	"github.com/alex4udak-blip/SEO-Pocket/internal/cache"
	"github.com/alex4udak-blip/SEO-Pocket/internal/fetcher"
	"github.com/alex4udak-blip/SEO-Pocket/internal/types"
)

// Config assembles an Engine from already-built parts.
type Config struct {
	// Crawler is the strategy cascade for the crawler identity, in
	// priority order.
	Crawler []fetcher.Strategy

	// Visitor is the cascade for the visitor identity.
	Visitor []fetcher.Strategy

	// Detector classifies every raw result. Shared across strategies
	// so classification stays uniform.
	Detector *block.Detector

	// Cache is the response cache. Required.
	Cache *cache.HTMLCache

	// MinHTMLLength is the smallest accepted document.
	MinHTMLLength int

	// AttemptTimeout bounds each single strategy attempt.
	AttemptTimeout time.Duration

	// Coalesce merges concurrent identical acquisitions into one
	// shared cascade run.
	Coalesce bool
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Requests  int64 `json:"requests"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	CacheHits int64 `json:"cache_hits"`
	Blocked   int64 `json:"blocked"`
	Attempts  int64 `json:"attempts"`
}

// Engine is the content-acquisition engine. It holds no global state;
// build one at process start and share it.
type Engine struct {
	crawler        []fetcher.Strategy
	visitor        []fetcher.Strategy
	detector       *block.Detector
	cache          *cache.HTMLCache
	minHTMLLength  int
	attemptTimeout time.Duration
	coalesce       bool

	group singleflight.Group

	requests  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64
	blocked   atomic.Int64
	attempts  atomic.Int64

	logger *slog.Logger
}

// New creates an Engine.
func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	return &Engine{
		crawler:        cfg.Crawler,
		visitor:        cfg.Visitor,
		detector:       cfg.Detector,
		cache:          cfg.Cache,
		minHTMLLength:  cfg.MinHTMLLength,
		attemptTimeout: cfg.AttemptTimeout,
		coalesce:       cfg.Coalesce,
		logger:         logger.With("component", "engine"),
	}
}

// Acquire obtains the content of url as seen under the given identity.
// Failures never surface as a Go error; they are classified inside the
// returned Outcome.
func (e *Engine) Acquire(ctx context.Context, rawURL string, identity types.Identity, opts types.Options) *types.Outcome {
	start := time.Now()

	req, err := types.NewRequest(rawURL, identity)
	if err != nil {
		return &types.Outcome{Err: err, Elapsed: time.Since(start)}
	}
	req.Options = opts
	e.requests.Add(1)

	// Only the crawler view is cached: it is the expensive side of an
	// analysis and the one repeated lookups ask for.
	if e.cacheable(req) && !opts.NoCache {
		if html, ok := e.cache.Get(ctx, rawURL); ok {
			e.cacheHits.Add(1)
			return &types.Outcome{
				Success:    true,
				HTML:       html,
				StatusCode: 200,
				FinalURL:   rawURL,
				Strategy:   "cache",
				Cached:     true,
				Elapsed:    time.Since(start),
			}
		}
	}

	if e.coalesce {
		key := string(identity) + ":" + cache.Key(rawURL)
		v, _, _ := e.group.Do(key, func() (any, error) {
			return e.cascade(ctx, req), nil
		})
		// Copy so concurrent callers never share the lazy document.
		out := *v.(*types.Outcome)
		out.Elapsed = time.Since(start)
		return &out
	}

	out := e.cascade(ctx, req)
	out.Elapsed = time.Since(start)
	return out
}

// cascade walks the identity's strategies in priority order until one
// produces acceptable content.
func (e *Engine) cascade(ctx context.Context, req *types.Request) *types.Outcome {
	target := req.URLString()

	strategies := e.crawler
	if req.Identity == types.IdentityVisitor {
		strategies = e.visitor
	}

	attempts := 0
	var lastErr error

	for _, s := range strategies {
		if req.Options.SkipGateway && s.Name() == "gateway" {
			continue
		}
		if req.Options.PreferCloakedProvenance && !s.CloakedProvenance() {
			continue
		}
		if err := s.Available(ctx); err != nil {
			e.logger.Debug("strategy unavailable, skipping", "strategy", s.Name(), "reason", err)
			continue
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		attempts++
		e.attempts.Add(1)

		res, err := e.attempt(ctx, s, target)
		if err != nil {
			e.logger.Debug("strategy failed", "strategy", s.Name(), "url", target, "error", err)
			lastErr = err
			continue
		}

		verdict := e.detector.Classify(res.HTML, res.StatusCode)
		if !verdict.Acceptable() {
			e.blocked.Add(1)
			lastErr = &types.BlockedError{
				Strategy:   s.Name(),
				URL:        target,
				Verdict:    verdict.String(),
				StatusCode: res.StatusCode,
			}
			e.logger.Debug("result rejected", "strategy", s.Name(), "url", target, "verdict", verdict.String(), "status", res.StatusCode)
			continue
		}
		if len(res.HTML) < e.minHTMLLength {
			lastErr = fmt.Errorf("%w: %s returned %d chars, need %d",
				types.ErrContentTooShort, s.Name(), len(res.HTML), e.minHTMLLength)
			e.logger.Debug("result too short", "strategy", s.Name(), "url", target, "length", len(res.HTML))
			continue
		}

		if e.cacheable(req) {
			e.cache.Set(ctx, target, res.HTML)
		}
		e.successes.Add(1)

		finalURL := res.FinalURL
		if finalURL == "" {
			finalURL = target
		}
		e.logger.Info("acquisition succeeded", "url", target, "identity", req.Identity, "strategy", s.Name(), "attempts", attempts)
		return &types.Outcome{
			Success:           true,
			HTML:              res.HTML,
			StatusCode:        res.StatusCode,
			FinalURL:          finalURL,
			Strategy:          s.Name(),
			CloakedProvenance: s.CloakedProvenance(),
		}
	}

	e.failures.Add(1)
	if lastErr == nil {
		lastErr = types.ErrAllStrategiesFailed
	}
	e.logger.Error("acquisition exhausted", "url", target, "identity", req.Identity, "attempts", attempts, "error", lastErr)
	return &types.Outcome{
		Err: &types.ExhaustError{URL: target, Attempts: attempts, LastErr: lastErr},
	}
}

// attempt runs one strategy under the per-attempt timeout.
func (e *Engine) attempt(ctx context.Context, s fetcher.Strategy, target string) (*types.RawResult, error) {
	actx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.Fetch(actx, target)
	if err != nil {
		var cfgErr *types.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &types.TransportError{Strategy: s.Name(), URL: target, Err: err}
	}
	if !res.OK {
		return nil, &types.TransportError{Strategy: s.Name(), URL: target, Err: fmt.Errorf("%s", res.Err)}
	}
	if res.HTML == "" {
		return nil, &types.TransportError{Strategy: s.Name(), URL: target, Err: types.ErrEmptyResponse}
	}
	if res.Elapsed == 0 {
		res.Elapsed = time.Since(start)
	}
	return res, nil
}

func (e *Engine) cacheable(req *types.Request) bool {
	return e.cache != nil && req.Identity == types.IdentityCrawler
}

// Snapshot returns the current counter values.
func (e *Engine) Snapshot() Stats {
	return Stats{
		Requests:  e.requests.Load(),
		Successes: e.successes.Load(),
		Failures:  e.failures.Load(),
		CacheHits: e.cacheHits.Load(),
		Blocked:   e.blocked.Load(),
		Attempts:  e.attempts.Load(),
	}
}

// Health reports per-strategy availability and cache backend state.
func (e *Engine) Health(ctx context.Context) map[string]any {
	strategies := make(map[string]any, len(e.crawler)+len(e.visitor))
	for _, s := range e.crawler {
		strategies[s.Name()] = e.strategyHealth(ctx, s)
	}
	for _, s := range e.visitor {
		if _, ok := strategies[s.Name()]; !ok {
			strategies[s.Name()] = e.strategyHealth(ctx, s)
		}
	}

	health := map[string]any{
		"strategies": strategies,
		"stats":      e.Snapshot(),
	}
	if e.cache != nil {
		health["cache"] = map[string]any{
			"backend": e.cache.Backend(),
			"ttl":     e.cache.TTL().String(),
		}
	}
	return health
}

func (e *Engine) strategyHealth(ctx context.Context, s fetcher.Strategy) map[string]any {
	h := map[string]any{
		"available":          true,
		"cloaked_provenance": s.CloakedProvenance(),
	}
	if err := s.Available(ctx); err != nil {
		h["available"] = false
		h["reason"] = err.Error()
	}
	return h
}
